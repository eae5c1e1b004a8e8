package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики сервисного слоя.
var (
	inspectionsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fc_inspections_submitted_total",
		Help: "Количество принятых записей осмотра.",
	})

	photoUploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fc_photo_upload_failures_total",
		Help: "Количество фотографий, не сохраненных в хранилище после всех повторов.",
	})

	decryptFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fc_field_decrypt_fallbacks_total",
		Help: "Количество значений, возвращенных как есть из-за ошибки расшифровки.",
	})

	exportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fc_export_rows_total",
		Help: "Количество выгруженных строк (по формату).",
	}, []string{"format"})
)
