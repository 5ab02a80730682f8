package desktop

import (
	"fmt"

	"github.com/Faultbox/cadview/internal/ingest"
	"github.com/Faultbox/cadview/pkg/scene"
)

// status is what the title bar shows.
type status struct {
	app      string
	file     string
	percent  float64
	stage    string
	loading  bool
	message  string
	stats    scene.Stats
	hasScene bool
}

func (s status) String() string {
	switch {
	case s.loading:
		return fmt.Sprintf("%s - %s - %.0f%% %s", s.app, s.file, s.percent, s.stage)
	case s.message != "":
		return fmt.Sprintf("%s - %s", s.app, s.message)
	case s.hasScene && s.stats.Lines > 0 && s.stats.Meshes == 0:
		return fmt.Sprintf("%s - %s (%d entities)", s.app, s.file, s.stats.Lines)
	case s.hasScene:
		return fmt.Sprintf("%s - %s (%d meshes, %d triangles)", s.app, s.file, s.stats.Meshes, s.stats.Triangles)
	default:
		return s.app + " - drop a STEP, DXF, DWG or mesh file"
	}
}

// apply folds an outcome into the status.
func (s *status) apply(out ingest.Outcome) {
	s.loading = false
	switch out.Status {
	case ingest.StatusSuccess:
		s.message = ""
		if n := len(out.Result.Warnings); n > 0 {
			s.message = fmt.Sprintf("%s loaded with %d warnings", s.file, n)
		}
	case ingest.StatusFailed:
		s.message = ingest.UserMessage(out.Err)
	default:
		s.message = "Loading cancelled"
	}
}
