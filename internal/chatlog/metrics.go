package chatlog

import "github.com/prometheus/client_golang/prometheus"

var (
	JournalErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_journal_errors_total",
		Help: "Entries the journal sink failed to persist",
	})

	JournalDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_journal_dropped_total",
		Help: "Entries dropped because the journal buffer was full",
	})
)

func init() {
	prometheus.MustRegister(JournalErrors)
	prometheus.MustRegister(JournalDropped)
}
