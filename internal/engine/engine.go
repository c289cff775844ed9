// Package engine orchestrates one organize run: enumerate source photos,
// run each through the cache-or-vision analysis pipeline, classify via the
// matcher (database mode) or clusterer (auto-cluster mode), plan
// destinations, execute placements, and write the report.
//
// The bounded worker pool is modeled on Skryldev-image-processor's
// core/processor.go jobQueue-chan-Job + sync.WaitGroup pattern, generalized
// from a generic pipeline-step runner to the fixed per-image analysis
// pipeline spec.md §5 describes. Vision calls are the only suspension
// points; the clusterer's own mutex (internal/cluster) serializes
// assignment regardless of how many workers call it concurrently.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/cache"
	"github.com/racelens/organizer/internal/cluster"
	"github.com/racelens/organizer/internal/config"
	"github.com/racelens/organizer/internal/executor"
	"github.com/racelens/organizer/internal/exifts"
	"github.com/racelens/organizer/internal/imaging"
	"github.com/racelens/organizer/internal/logging"
	"github.com/racelens/organizer/internal/matcher"
	"github.com/racelens/organizer/internal/names"
	"github.com/racelens/organizer/internal/planner"
	"github.com/racelens/organizer/internal/report"
	"github.com/racelens/organizer/internal/roster"
	"github.com/racelens/organizer/internal/vision"
)

// analysis is one photo's outcome from the cache-or-vision stage, ready for
// matcher/clusterer classification. category is set to "no-faces" as a
// short-circuit; err set means the photo could not be analyzed at all.
type analysis struct {
	path       string
	category   string
	detections []vision.SubjectDetection
	capturedAt *time.Time
	err        error
}

// Engine runs the organize pipeline for one configuration.
type Engine struct {
	cfg       *config.Config
	vision    *vision.Client
	cache     *cache.Cache
	roster    *roster.Roster  // nil in auto-cluster mode
	clusterer *cluster.Engine // nil in database mode
	loader    *imaging.Loader
	log       *report.Log
}

// New builds an Engine from cfg. In database mode r must be non-nil; in
// auto-cluster mode the clusterer is constructed internally from cfg.
func New(cfg *config.Config, visionClient *vision.Client, analysisCache *cache.Cache, r *roster.Roster) *Engine {
	e := &Engine{
		cfg:    cfg,
		vision: visionClient,
		cache:  analysisCache,
		roster: r,
		loader: imaging.NewLoader(cfg.MaxImageMB, cfg.MaxImageDim),
		log:    report.New(cfg),
	}
	if cfg.Mode == config.ModeAutoCluster {
		policy := cluster.NewPolicy(cfg.TExactSeconds, cfg.THighSeconds, cfg.ConfidenceThreshold)
		e.clusterer = cluster.New(policy, visionClient)
	}
	return e
}

// Run enumerates cfg.SourceDir, analyzes every photo through a bounded
// worker pool, classifies and plans destinations, executes placements, and
// writes the report. Images are processed in sorted-path order when
// cfg.Deterministic is set (spec.md §5).
func (e *Engine) Run(ctx context.Context) (*report.Log, error) {
	paths, err := imaging.Enumerate(e.cfg.SourceDir, e.cfg.Recursive)
	if err != nil {
		return nil, err
	}
	if e.cfg.Deterministic {
		sort.Strings(paths)
	}

	results := e.analyzeAll(ctx, paths)

	pl := planner.New(e.cfg.OutputDir)
	var decisions []planner.Decision
	clusterAssignments := make(map[string]*cluster.Cluster) // auto-cluster mode only
	imageErrors := make(map[string]string)                  // source path -> recorded failure, for the report

	// hadFailure tracks whether any image failed analysis or classification
	// without hitting a fatal vision-auth error — spec.md §7 exits such a run
	// with code 3 rather than 0, even though every image still got placed.
	// fatalErr holds a vision-auth/quota/permission failure, which is never
	// retried and aborts the remainder of the run (spec.md §7, exit 2).
	var hadFailure bool
	var fatalErr error

	for _, res := range results {
		if res.err != nil {
			if apperr.IsCategory(res.err, apperr.CategoryVisionAuth) {
				imageErrors[res.path] = res.err.Error()
				e.log.AddVisionError(res.err.Error())
				fatalErr = res.err
				break
			}
			if apperr.IsCategory(res.err, apperr.CategoryVisionTransient) {
				e.log.AddVisionError(res.err.Error())
			}
			hadFailure = true
			imageErrors[res.path] = res.err.Error()

			// A vision-transient-exhausted or decode-failed image is still
			// classified as no-faces for placement purposes (spec.md §7) so
			// it lands in No_Faces_Detected/ and appears in the manifest;
			// the report's Error field is what distinguishes it from a
			// genuine no-detections result.
			decisions = append(decisions, planner.Decision{SourcePath: res.path, Category: planner.CategoryNoFaces, CapturedAt: res.capturedAt})
			continue
		}

		if res.category == "no-faces" {
			decisions = append(decisions, planner.Decision{SourcePath: res.path, Category: planner.CategoryNoFaces, CapturedAt: res.capturedAt})
			continue
		}

		var decision planner.Decision
		var assignedCluster *cluster.Cluster
		if e.cfg.Mode == config.ModeAutoCluster {
			decision, assignedCluster, err = e.classifyAutoCluster(res)
		} else {
			decision, err = e.classifyDatabase(res)
		}
		if err != nil {
			if apperr.IsCategory(err, apperr.CategoryVisionAuth) {
				imageErrors[res.path] = err.Error()
				e.log.AddVisionError(err.Error())
				fatalErr = err
				break
			}
			if apperr.IsCategory(err, apperr.CategoryVisionTransient) {
				e.log.AddVisionError(err.Error())
			}
			hadFailure = true
			imageErrors[res.path] = err.Error()
			decisions = append(decisions, planner.Decision{SourcePath: res.path, Category: planner.CategoryNoFaces, CapturedAt: res.capturedAt})
			continue
		}
		if assignedCluster != nil {
			clusterAssignments[res.path] = assignedCluster
		}
		decisions = append(decisions, decision)
	}

	// Auto-cluster mode resolves deterministic names only once every photo
	// has been assigned, since collision-dedup needs the full cluster set
	// (spec.md §4.7).
	if e.cfg.Mode == config.ModeAutoCluster {
		e.resolveClusterNames(decisions, clusterAssignments)
	}

	placements := pl.Plan(decisions)
	for i, d := range decisions {
		e.log.AddImage(report.ImageOutcome{
			SourcePath:      d.SourcePath,
			Category:        string(d.Category),
			DestinationPath: placements[i].DestinationPath(),
			Error:           imageErrors[d.SourcePath],
		})
	}

	if e.cfg.Mode == config.ModeAutoCluster {
		e.log.SetClusters(clusterSummaries(e.clusterer.Clusters()))
	}

	mode := executor.ModeCopy
	if e.cfg.CopyOrMove == config.MoveMode {
		mode = executor.ModeMove
	}
	ex := executor.New(e.cfg.OutputDir, mode, e.cfg.DryRun)
	summary := ex.Execute(placements)
	logging.Infof("engine: placement summary: %d succeeded, %d failed", summary.Succeeded, summary.Failed)
	if summary.Failed > 0 {
		hadFailure = true
	}

	if err := e.cache.Flush(); err != nil {
		logging.Warnf("engine: final cache flush failed: %v", err)
	}

	if !e.cfg.DryRun {
		if err := e.log.Write(e.cfg.OutputDir); err != nil {
			if fatalErr == nil {
				fatalErr = err
			}
		}
	}

	if fatalErr != nil {
		return e.log, fatalErr
	}
	if hadFailure {
		return e.log, apperr.New(apperr.CategoryVisionTransient, "engine.run",
			fmt.Errorf("run completed with failures: %d image(s) or placement(s) did not succeed", len(imageErrors)+summary.Failed))
	}

	return e.log, nil
}

// analyzeAll runs the cache-or-vision analysis stage for every path through
// a bounded worker pool, returning results in the same order as paths.
func (e *Engine) analyzeAll(ctx context.Context, paths []string) []analysis {
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]analysis, len(paths))
	jobs := make(chan int, len(paths))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					results[idx] = analysis{path: paths[idx], err: apperr.Wrap(apperr.CategoryConfig, "engine.analyze", ctx.Err())}
					continue
				default:
				}
				results[idx] = e.analyzeOne(paths[idx])
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// analyzeOne loads, hashes, and classifies a single photo's subject count
// via detect_all_subjects, serving cached payloads when available.
func (e *Engine) analyzeOne(path string) analysis {
	photo, err := e.loader.Load(path)
	if err != nil {
		return analysis{path: path, err: err}
	}

	var detections []vision.SubjectDetection
	if entry, ok := e.cache.Get(photo.ContentHash, cache.PromptDetectAllSubjects); ok {
		detections = entry.Subjects
	} else {
		encoded, encErr := e.loader.EncodeForVision(photo.Image)
		if encErr != nil {
			return analysis{path: path, err: encErr}
		}
		detections, err = e.vision.DetectAllSubjects(encoded, names.Sanitize(photo.ContentHash)+".jpg")
		if err != nil {
			return analysis{path: path, err: err}
		}
		if putErr := e.cache.Put(photo.ContentHash, cache.PromptDetectAllSubjects, cache.Entry{Subjects: detections}); putErr != nil {
			logging.Warnf("engine: cache put failed for %s: %v", path, putErr)
		}
	}

	var capturedAt *time.Time
	if ts, tsErr := exifts.Extract(path); tsErr == nil {
		capturedAt = &ts
	}

	if len(detections) == 0 {
		return analysis{path: path, category: "no-faces"}
	}
	return analysis{path: path, detections: detections, capturedAt: capturedAt}
}

func (e *Engine) classifyDatabase(res analysis) (planner.Decision, error) {
	result, err := matcher.Match(e.vision, e.roster, res.detections, e.cfg.ConfidenceThreshold)
	if err != nil {
		return planner.Decision{}, err
	}
	return planner.Decision{
		SourcePath:      res.path,
		Category:        planner.Category(result.Category),
		DestinationName: result.DestinationName,
		CapturedAt:      res.capturedAt,
	}, nil
}

// classifyAutoCluster treats the photo's single dominant subject as the
// clusterer's input (spec.md §4.7 is framed in terms of one subject per
// photo); a photo where the vision backend reports more than one
// distinguishable subject is routed to Multiple_People without ever
// reaching the clusterer.
func (e *Engine) classifyAutoCluster(res analysis) (planner.Decision, *cluster.Cluster, error) {
	if len(res.detections) > 1 {
		return planner.Decision{SourcePath: res.path, Category: planner.CategoryMultipleSubjects, CapturedAt: res.capturedAt}, nil, nil
	}

	c, err := e.clusterer.Assign(res.path, res.detections[0], res.capturedAt)
	if err != nil {
		return planner.Decision{}, nil, err
	}
	return planner.Decision{SourcePath: res.path, Category: planner.CategorySingleSubject, CapturedAt: res.capturedAt}, c, nil
}

// resolveClusterNames assigns each decision its final, collision-resolved
// cluster name once every photo has been assigned (spec.md §4.7's
// deterministic-naming pass runs only after clustering completes).
func (e *Engine) resolveClusterNames(decisions []planner.Decision, assignments map[string]*cluster.Cluster) {
	clusterNames := cluster.FinalizeNames(e.clusterer.Clusters())
	for i, d := range decisions {
		if d.Category != planner.CategorySingleSubject {
			continue
		}
		c, ok := assignments[d.SourcePath]
		if !ok {
			continue
		}
		decisions[i].DestinationName = clusterNames[c.ID]
	}
}

func clusterSummaries(clusters []*cluster.Cluster) []report.ClusterSummary {
	clusterNames := cluster.FinalizeNames(clusters)
	summaries := make([]report.ClusterSummary, 0, len(clusters))
	for _, c := range clusters {
		summaries = append(summaries, report.ClusterSummary{
			Name:        clusterNames[c.ID],
			MemberCount: len(c.Members),
			Bib:         c.Bib,
		})
	}
	return summaries
}
