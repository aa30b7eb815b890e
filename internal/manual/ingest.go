package manual

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// BatchEmbedder embeds many texts in one call. Satisfied by
// *embeddings.Client.
type BatchEmbedder interface {
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Ingester builds the manual store from a directory of documents.
type Ingester struct {
	store    *Store
	embedder BatchEmbedder
	logger   *slog.Logger
}

// NewIngester creates a manual ingester.
func NewIngester(store *Store, embedder BatchEmbedder, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: store, embedder: embedder, logger: logger}
}

// IngestDir chunks every markdown and PDF file under dir, embeds the
// chunks, and replaces the store contents. Returns the number of chunks
// stored.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (int, error) {
	var chunks []Chunk

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown":
			cs, err := chunkMarkdownFile(path, rel)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", rel, err)
			}
			chunks = append(chunks, cs...)
		case ".pdf":
			cs, err := chunkPDF(path, rel, in.logger)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", rel, err)
			}
			chunks = append(chunks, cs...)
		default:
			in.logger.Debug("skipping unsupported file", "path", rel)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}

	if len(chunks) == 0 {
		return 0, fmt.Errorf("no markdown or PDF documents found in %s", dir)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	in.logger.Info("embedding manual chunks", "count", len(chunks))
	vectors, err := in.embedder.GenerateBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := in.store.Replace(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

// chunkMarkdownFile splits a markdown file into one chunk per heading
// section. The heading path is kept in the chunk text so the embedding
// carries the section's topic.
func chunkMarkdownFile(path, source string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return chunkMarkdown(f, source), nil
}

var (
	headingPattern   = regexp.MustCompile(`^(#{1,3})\s+(.+)$`)
	codeFencePattern = regexp.MustCompile("^```")
)

func chunkMarkdown(r io.Reader, source string) []Chunk {
	var chunks []Chunk
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	// headings[0..2] track the current H1/H2/H3 titles.
	var headings [3]string
	var content strings.Builder

	sectionPath := func() string {
		var parts []string
		for _, h := range headings {
			if h != "" {
				parts = append(parts, h)
			}
		}
		return strings.Join(parts, " / ")
	}

	flush := func() {
		body := strings.TrimSpace(content.String())
		content.Reset()
		if body == "" {
			return
		}
		section := sectionPath()
		text := body
		if section != "" {
			text = section + "\n\n" + body
		}
		chunks = append(chunks, Chunk{Source: source, Section: section, Content: text})
	}

	inCodeBlock := false
	for scanner.Scan() {
		line := scanner.Text()

		if codeFencePattern.MatchString(line) {
			inCodeBlock = !inCodeBlock
			content.WriteString(line + "\n")
			continue
		}
		if inCodeBlock {
			content.WriteString(line + "\n")
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1]) - 1
			headings[level] = strings.TrimSpace(m[2])
			for i := level + 1; i < len(headings); i++ {
				headings[i] = ""
			}
			continue
		}

		if line != "" || content.Len() > 0 {
			content.WriteString(line + "\n")
		}
	}
	flush()

	return chunks
}

// chunkPDF extracts one chunk per page. Pages whose text cannot be
// extracted are skipped rather than failing the whole file.
func chunkPDF(path, source string, logger *slog.Logger) ([]Chunk, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var chunks []Chunk
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("failed to extract pdf page", "path", source, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Source:  source,
			Section: fmt.Sprintf("page %d", i),
			Content: text,
		})
	}
	return chunks, nil
}
