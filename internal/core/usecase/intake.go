package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/core/ports"
)

// IngestCVUseCase is upload glue ahead of the pipeline: store the raw
// file, extract text, parse it into a structured CV, persist it. The
// pipeline itself only ever sees parsed CVDocuments.
type IngestCVUseCase struct {
	storage   ports.ObjectStorage
	extractor ports.CVTextExtractor
	parser    ports.CVParser
	cvRepo    ports.CVRepository
	logger    *slog.Logger
}

func NewIngestCVUseCase(storage ports.ObjectStorage, extractor ports.CVTextExtractor, parser ports.CVParser, cvRepo ports.CVRepository, logger *slog.Logger) *IngestCVUseCase {
	return &IngestCVUseCase{
		storage:   storage,
		extractor: extractor,
		parser:    parser,
		cvRepo:    cvRepo,
		logger:    logger,
	}
}

func (uc *IngestCVUseCase) Ingest(ctx context.Context, filename string, raw []byte) (*domain.CVDocument, error) {
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest cv", errors.New("empty upload"))
	}
	if ext := filepath.Ext(filename); ext != ".pdf" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest cv", fmt.Errorf("unsupported extension %q", ext))
	}

	cvID := uuid.NewString()
	path, err := uc.storage.Save(ctx, cvID+".pdf", raw)
	if err != nil {
		return nil, fmt.Errorf("store cv file: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, path)
	if err != nil {
		uc.removeStored(path)
		return nil, fmt.Errorf("extract cv text: %w", err)
	}

	cv, err := uc.parser.Parse(ctx, text)
	if err != nil {
		uc.removeStored(path)
		return nil, fmt.Errorf("parse cv: %w", err)
	}
	cv.ID = cvID

	if err := uc.cvRepo.Create(ctx, cv); err != nil {
		uc.removeStored(path)
		return nil, fmt.Errorf("persist cv: %w", err)
	}
	uc.logger.Info("cv ingested",
		slog.String("cv_id", cvID),
		slog.Int("skills", len(cv.ClaimedSkills)),
		slog.Int("projects", len(cv.Projects)))
	return cv, nil
}

func (uc *IngestCVUseCase) removeStored(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		uc.logger.Warn("orphan cv file not removed", slog.String("path", path))
	}
}
