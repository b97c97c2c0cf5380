package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()

	ScheduleEvery(interval time.Duration, task func()) error
	ScheduleTaskOnce(at time.Time, task func()) error
}
