package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"promo-pipelines/types"
)

// Action is the outcome of a resume check
type Action int

const (
	RestartAll Action = iota
	ResumeFiles
)

func (a Action) String() string {
	if a == ResumeFiles {
		return "resume"
	}
	return "restart"
}

// PendingFile is a failed file that can be resubmitted
type PendingFile struct {
	Name        string
	Path        string
	Kind        types.CampaignKind
	Attempts    int
	LastAttempt string
	LastError   string
	Sheet       string
}

// Decision tells the orchestrator whether to resume or start over
type Decision struct {
	Action Action
	Files  []PendingFile
}

// FileExists reports whether a regular file exists at path
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CheckResume inspects the stored ledger. Failed entries whose file is still
// in outputDir are returned for resubmission; when there are none the ledger is
// removed and the caller restarts. exists defaults to FileExists.
func CheckResume(store Store, outputDir string, exists func(string) bool) (Decision, error) {
	if exists == nil {
		exists = FileExists
	}

	doc, err := store.Load()
	if errors.Is(err, ErrNoLedger) {
		return Decision{Action: RestartAll}, nil
	}
	if err != nil {
		return Decision{Action: RestartAll}, fmt.Errorf("check resume: %w", err)
	}

	var files []PendingFile
	for name, e := range doc.Files {
		if e.Status != StatusFailed {
			continue
		}
		path := filepath.Join(outputDir, name)
		if !exists(path) {
			continue
		}
		files = append(files, PendingFile{
			Name:        name,
			Path:        path,
			Kind:        e.Kind,
			Attempts:    e.Attempts,
			LastAttempt: e.LastAttempt,
			LastError:   e.LastError,
			Sheet:       e.Sheet,
		})
	}

	if len(files) == 0 {
		if err := store.Remove(); err != nil {
			return Decision{Action: RestartAll}, fmt.Errorf("check resume: %w", err)
		}
		return Decision{Action: RestartAll}, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return Decision{Action: ResumeFiles, Files: files}, nil
}
