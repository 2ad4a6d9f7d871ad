package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/core/ports"
)

type ExportUseCase struct {
	storage  ports.ObjectStorage
	encoders []ports.TableEncoder
}

func NewExportUseCase(storage ports.ObjectStorage, encoders ...ports.TableEncoder) *ExportUseCase {
	return &ExportUseCase{
		storage:  storage,
		encoders: encoders,
	}
}

func (uc *ExportUseCase) Render(result domain.DocumentResult, format string) ([]byte, error) {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	for _, enc := range uc.encoders {
		if enc.Extension() != format {
			continue
		}
		data, err := enc.Encode(result)
		if err != nil {
			return nil, fmt.Errorf("encode %s export: %w", format, err)
		}
		return data, nil
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "render export", fmt.Errorf("unsupported format %q", format))
}

// HandleProcessed writes one file per encoder into the export outbox.
func (uc *ExportUseCase) HandleProcessed(ctx context.Context, event domain.DocumentProcessed) error {
	if strings.TrimSpace(event.RunID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "handle processed", errors.New("run id is required"))
	}
	if uc.storage == nil {
		return errors.New("export storage is not configured")
	}

	base := exportBaseName(event)
	for _, enc := range uc.encoders {
		data, err := enc.Encode(event.Result)
		if err != nil {
			return fmt.Errorf("encode %s export: %w", enc.Extension(), err)
		}
		key := base + "." + enc.Extension()
		if err := uc.storage.Save(ctx, key, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

func exportBaseName(event domain.DocumentProcessed) string {
	name := sanitizeFilename(event.RunID)
	if number := strings.TrimSpace(event.Result.Document.Number); number != "" {
		name += "_" + sanitizeFilename(strings.ReplaceAll(number, "/", "-"))
	}
	return name
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document"
	}
	return base
}
