package config

type WorkerKeyStruct struct {
	AttemptEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	AttemptEventsQueue: "attempt_events_queue",
}
