// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinkFramesTotal counts frames submitted to the link by direction,
	// whether or not the loss model dropped them.
	LinkFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_link_frames_total",
			Help: "Total number of frames submitted to the link",
		},
		[]string{"direction"},
	)

	// LinkDropsTotal counts frames lost to the Bernoulli drop model.
	LinkDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_link_drops_total",
			Help: "Total number of frames dropped by the loss model",
		},
		[]string{"direction"},
	)

	// LinkDeliveredTotal counts frames that reached a directional FIFO.
	LinkDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_link_delivered_total",
			Help: "Total number of frames delivered to a receive queue",
		},
		[]string{"direction"},
	)

	// ArqRetriesTotal counts retransmissions after a missed or negative ACK.
	ArqRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_arq_retries_total",
			Help: "Total number of retransmissions",
		},
		[]string{"station"},
	)

	// ArqSendFailuresTotal counts sends abandoned after exhausting retries.
	ArqSendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_arq_send_failures_total",
			Help: "Total number of sends abandoned after max retries",
		},
		[]string{"station"},
	)

	// ArqNaksTotal counts negative acknowledgements by station and flow
	// (sent or received).
	ArqNaksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_arq_naks_total",
			Help: "Total number of NAK frames",
		},
		[]string{"station", "flow"},
	)

	// ArqDuplicatesTotal counts duplicate data frames suppressed by the receiver.
	ArqDuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_arq_duplicates_total",
			Help: "Total number of duplicate frames suppressed",
		},
		[]string{"station"},
	)

	// DataFramesTotal counts application data frames by station, type and
	// direction ("tx" counts acknowledged sends, "rx" counts delivered frames).
	DataFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satlink_data_frames_total",
			Help: "Total number of acknowledged or delivered data frames",
		},
		[]string{"station", "type", "direction"},
	)
)
