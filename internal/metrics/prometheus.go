package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors of the ingestion and query
// pipelines. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Ingestion
	ChunksIngested    prometheus.Counter
	AudioIngested     prometheus.Counter
	InsertFailures    *prometheus.CounterVec
	EmbeddingFailures *prometheus.CounterVec

	// Transcription
	TranscriptionResults *prometheus.CounterVec

	// Query
	RetrievalMatches   prometheus.Histogram
	GenerationOutcomes *prometheus.CounterVec
}

// New creates all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ChunksIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_ingested_total",
			Help: "Total number of document chunks stored",
		}),
		AudioIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "rag_audio_records_ingested_total",
			Help: "Total number of audio records stored",
		}),
		InsertFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_insert_failures_total",
			Help: "Total number of rejected vector store inserts",
		}, []string{"kind"}),
		EmbeddingFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_embedding_failures_total",
			Help: "Total number of embeddings that could not be computed",
		}, []string{"modality"}),
		TranscriptionResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_transcription_results_total",
			Help: "Streaming transcription results by kind",
		}, []string{"kind"}),
		RetrievalMatches: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_retrieval_matches",
			Help:    "Number of matches returned per query",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		GenerationOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_generation_outcomes_total",
			Help: "Answer generation outcomes",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordChunkIngested increments the stored chunks counter
func (m *Metrics) RecordChunkIngested() {
	if m == nil {
		return
	}
	m.ChunksIngested.Inc()
}

// RecordAudioIngested increments the stored audio records counter
func (m *Metrics) RecordAudioIngested() {
	if m == nil {
		return
	}
	m.AudioIngested.Inc()
}

// RecordInsertFailure counts a rejected insert of the given record kind
func (m *Metrics) RecordInsertFailure(kind string) {
	if m == nil {
		return
	}
	m.InsertFailures.WithLabelValues(kind).Inc()
}

// RecordEmbeddingFailure counts an embedding that degraded to absent
func (m *Metrics) RecordEmbeddingFailure(modality string) {
	if m == nil {
		return
	}
	m.EmbeddingFailures.WithLabelValues(modality).Inc()
}

// RecordTranscriptionResult counts a streaming result of the given kind
func (m *Metrics) RecordTranscriptionResult(kind string) {
	if m == nil {
		return
	}
	m.TranscriptionResults.WithLabelValues(kind).Inc()
}

// RecordRetrieval observes how many matches a query returned
func (m *Metrics) RecordRetrieval(matches int) {
	if m == nil {
		return
	}
	m.RetrievalMatches.Observe(float64(matches))
}

// RecordGeneration counts a generation outcome (answered, fallback, blocked, error)
func (m *Metrics) RecordGeneration(outcome string) {
	if m == nil {
		return
	}
	m.GenerationOutcomes.WithLabelValues(outcome).Inc()
}
