package main

import (
	"flag"
	"os"
	"path/filepath"

	"crew-import/internal/config"
	"crew-import/internal/service"
	"crew-import/internal/utils"
)

func main() {
	log := utils.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	outDir := flag.String("out", cfg.TemplatePath, "directory the templates are written to")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Error creating %s: %v", *outDir, err)
	}

	registry := service.NewRegistry(service.DefaultsFromConfig(cfg), nil)
	templates := service.NewTemplateService(registry, service.NewExcelService(cfg.ImportTitleRows), cfg.ImportTitleRows)

	for _, schema := range registry.Schemas() {
		for _, format := range []string{service.FormatCSV, service.FormatXLSX} {
			template, err := templates.Render(schema.Key, format)
			if err != nil {
				log.Fatalf("Error rendering %s template: %v", schema.Key, err)
			}

			path := filepath.Join(*outDir, template.Filename)
			if err := os.WriteFile(path, template.Body, 0o644); err != nil {
				log.Fatalf("Error saving %s: %v", path, err)
			}
			log.WithField("entity", schema.Key).Infof("Template written: %s", path)
		}
	}
}
