package config

type WorkerKeyStruct struct {
	PersistAnswersQueue     string
	PersistIntegrityQueue   string
	PersistOptionOrderQueue string
	PersistResultsQueue     string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:     "persist_answers_queue",
	PersistIntegrityQueue:   "persist_integrity_queue",
	PersistOptionOrderQueue: "persist_option_order_queue",
	PersistResultsQueue:     "persist_results_queue",
}
