package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/logging"
	"github.com/racelens/organizer/pkg/utils"
)

// DescribeOneFace produces a canonical textual description of the single
// primary subject in imageBase64 (spec.md §4.3). Used when ingesting a
// roster reference photo.
func (c *Client) DescribeOneFace(imageBase64, filename string) (string, error) {
	var out describeResponse
	op := "vision.describe_one_face"
	err := c.withRetry(op, func() error {
		body, status, err := c.postMultipart("/describe_one_face", imageBase64, filename, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return classifyHTTPError(op, status, string(body))
		}
		return extractJSON(string(body), &out)
	})
	if err != nil {
		return "", err
	}
	return out.Description, nil
}

// DetectAllSubjects enumerates every distinguishable subject in imageBase64
// (spec.md §4.3). An empty slice with a nil error is a valid result: it means
// no faces were found.
func (c *Client) DetectAllSubjects(imageBase64, filename string) ([]SubjectDetection, error) {
	var out detectResponse
	op := "vision.detect_all_subjects"
	err := c.withRetry(op, func() error {
		body, status, err := c.postMultipart("/detect_all_subjects", imageBase64, filename, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return classifyHTTPError(op, status, string(body))
		}
		return extractJSON(string(body), &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Subjects, nil
}

// CompareTwoDescriptions returns a similarity score in [0,1] between two
// free-text outfit descriptions (spec.md §4.3). The qualitative reason
// string is logged but otherwise ignored by callers.
func (c *Client) CompareTwoDescriptions(a, b string) (float64, error) {
	var out compareResponse
	op := "vision.compare_two_descriptions"
	err := c.withRetry(op, func() error {
		payload, err := json.Marshal(map[string]string{"description_a": a, "description_b": b})
		if err != nil {
			return apperr.New(apperr.CategoryVisionAuth, op, err)
		}
		resp, err := c.HTTPClient.Post(c.BaseURL+"/compare_two_descriptions", "application/json", bytes.NewReader(payload))
		if err != nil {
			return apperr.Transient(op, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperr.Transient(op, err)
		}
		if resp.StatusCode != http.StatusOK {
			return classifyHTTPError(op, resp.StatusCode, string(body))
		}
		return extractJSON(string(body), &out)
	})
	if err != nil {
		return 0, err
	}

	logging.Tracef("vision: compare_two_descriptions score=%.3f reason=%q", out.Score, out.Reason)

	return utils.Clamp01(out.Score), nil
}

// postMultipart uploads a base64-encoded image payload as a multipart form
// field, mirroring the teacher's compreface.Client.DetectFacesFromBytes
// request shape (multipart file part + x-api-key header) adapted to a
// base64-text field instead of raw bytes, since the vision backend's
// contract here is JSON-in/JSON-out rather than binary upload.
func (c *Client) postMultipart(path, imageBase64, filename string, extra map[string]string) ([]byte, int, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("image_base64", imageBase64); err != nil {
		return nil, 0, apperr.New(apperr.CategoryVisionAuth, path, err)
	}
	if err := writer.WriteField("filename", filename); err != nil {
		return nil, 0, apperr.New(apperr.CategoryVisionAuth, path, err)
	}
	for k, v := range extra {
		if err := writer.WriteField(k, v); err != nil {
			return nil, 0, apperr.New(apperr.CategoryVisionAuth, path, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, 0, apperr.New(apperr.CategoryVisionAuth, path, err)
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return nil, 0, apperr.New(apperr.CategoryVisionAuth, path, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	logging.Tracef("vision: POST %s", path)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, apperr.Transient(path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apperr.Transient(path, err)
	}
	return respBody, resp.StatusCode, nil
}

// HealthCheck confirms the vision backend is reachable, mirroring the
// teacher's IsVisionServiceAvailable probe.
func (c *Client) HealthCheck() error {
	resp, err := c.HTTPClient.Get(c.BaseURL + "/health")
	if err != nil {
		return apperr.Transient("vision.health", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperr.Transient("vision.health", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}
