package worker

import (
	"github.com/hibiken/asynq"
)

func RegisterHandlers(mux *asynq.ServeMux, importer Importer) {
	importHandler := NewImportTaskHandler(importer)
	mux.HandleFunc(TypeImportRun, importHandler.Handle)
}
