package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to manage background source checks.
// Example usage:
//
//	scheduler := NewScheduler(configCache, runRepo, env, interval, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.CheckSource("fia", TriggerAPI)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	CheckSource(name, trigger string) error
	ResetLedger(name string) error
	IsBusy(name string) bool
}
