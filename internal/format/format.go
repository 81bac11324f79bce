// Package format переводит аннотации в текст и обратно.
//
// Inline хранит аннотации в fenced-блоке ```gophreview в конце документа,
// Sidecar - в отдельном YAML-файле рядом с документом (<doc>.review.yaml).
package format

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/gophreview/internal/fsutil"
	"github.com/iudanet/gophreview/internal/models"
)

const (
	fenceOpen    = "```gophreview\n"
	fenceClose   = "```\n"
	sidecarExt   = ".review.yaml"
	fileVersion  = 1
	documentPerm = 0o644
)

// ErrUnsupportedVersion версия файла аннотаций новее поддерживаемой
var ErrUnsupportedVersion = errors.New("unsupported annotations version")

type annotationsFile struct {
	Version     int                 `yaml:"version"`
	Annotations []models.Annotation `yaml:"annotations"`
}

// Inline хранит аннотации внутри документа
type Inline struct{}

// Sidecar хранит аннотации в отдельном файле
type Sidecar struct{}

// SidecarPath возвращает путь файла аннотаций для документа
func SidecarPath(documentPath string) string {
	return documentPath + sidecarExt
}

// Body возвращает текст документа без блока аннотаций
func Body(text string) string {
	body, _ := split(text)
	return body
}

// Parse извлекает аннотации из блока документа. Документ без блока - пустой список.
func (Inline) Parse(text string) ([]models.Annotation, error) {
	_, block := split(text)
	if block == "" {
		return nil, nil
	}
	return decode([]byte(block))
}

// Serialize дописывает блок с аннотациями к телу документа (старый блок заменяется)
func (Inline) Serialize(body string, records []models.Annotation) (string, error) {
	body = Body(body)
	if len(records) == 0 {
		return body, nil
	}

	data, err := encode(records)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(body, "\n"))
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(fenceOpen)
	b.Write(data)
	b.WriteString(fenceClose)
	return b.String(), nil
}

// Parse читает YAML-файл аннотаций
func (Sidecar) Parse(text string) ([]models.Annotation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return decode([]byte(text))
}

// Serialize формирует YAML-файл аннотаций; body не используется
func (Sidecar) Serialize(_ string, records []models.Annotation) (string, error) {
	data, err := encode(records)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadDocument читает документ и его аннотации.
// Для sidecar отсутствующий файл аннотаций означает пустой список.
func LoadDocument(documentPath string, sidecar bool) (body string, records []models.Annotation, err error) {
	data, err := os.ReadFile(documentPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read document: %w", err)
	}
	text := string(data)

	if !sidecar {
		records, err = Inline{}.Parse(text)
		if err != nil {
			return "", nil, err
		}
		return Body(text), records, nil
	}

	side, err := os.ReadFile(SidecarPath(documentPath))
	if errors.Is(err, os.ErrNotExist) {
		return text, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to read sidecar: %w", err)
	}
	records, err = Sidecar{}.Parse(string(side))
	if err != nil {
		return "", nil, err
	}
	return text, records, nil
}

// WriteDocument сохраняет аннотации: в sidecar-файл или внутрь документа.
// body - текущий текст документа без блока аннотаций. Возвращает записанный текст.
func WriteDocument(documentPath string, sidecar bool, body string, records []models.Annotation) (string, error) {
	if sidecar {
		text, err := Sidecar{}.Serialize(body, records)
		if err != nil {
			return "", err
		}
		return text, fsutil.WriteFileAtomic(SidecarPath(documentPath), []byte(text), documentPerm)
	}

	text, err := Inline{}.Serialize(body, records)
	if err != nil {
		return "", err
	}
	return text, fsutil.WriteFileAtomic(documentPath, []byte(text), documentPerm)
}

// split делит текст на тело и содержимое последнего блока аннотаций
func split(text string) (body, block string) {
	idx := strings.LastIndex(text, "\n"+fenceOpen)
	start := idx + 1
	if idx < 0 {
		if !strings.HasPrefix(text, fenceOpen) {
			return text, ""
		}
		start = 0
	}

	rest := text[start+len(fenceOpen):]
	end := strings.Index("\n"+rest, "\n"+fenceClose)
	if end < 0 {
		return text, ""
	}
	// После блока допускаются только пустые строки
	if strings.TrimSpace(rest[end+len(fenceClose):]) != "" {
		return text, ""
	}

	body = strings.TrimRight(text[:start], "\n")
	if body != "" {
		body += "\n"
	}
	return body, rest[:end]
}

func decode(data []byte) ([]models.Annotation, error) {
	var file annotationsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}
	if file.Version > fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, file.Version)
	}
	for i := range file.Annotations {
		if file.Annotations[i].Status == "" {
			file.Annotations[i].Status = models.StatusOpen
		}
	}
	return file.Annotations, nil
}

func encode(records []models.Annotation) ([]byte, error) {
	if records == nil {
		records = []models.Annotation{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(annotationsFile{Version: fileVersion, Annotations: records}); err != nil {
		return nil, fmt.Errorf("failed to encode annotations: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode annotations: %w", err)
	}
	return buf.Bytes(), nil
}
