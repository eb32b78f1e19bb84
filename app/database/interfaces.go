package database

type RunRepository interface {
	CreateRun(sourceName, triggeredBy string) (*Run, error)
	FinishRun(runID string, result RunResult) error
	AddDocuments(runID string, documents []RunDocument) error

	GetRun(runID string) (*Run, error)
	GetRecentRuns(sourceName string, limit int) ([]Run, error)
	GetLastRun(sourceName string) (*Run, error)
	GetRunDocuments(runID string) ([]RunDocument, error)
	GetStats(sourceName string) (*Stats, error)
}
