package extract

import "context"

// Page is one rasterized document page, the unit of work sent to the
// inference service. PNG holds the encoded image bytes.
type Page struct {
	Index int // 1-based, source order
	PNG   []byte
}

// PageReader streams pages one at a time, in source order. Next returns
// io.EOF once the document is exhausted. Readers are forward-only and
// not restartable.
type PageReader interface {
	Next(ctx context.Context) (Page, error)
	Close() error
}

// PageSource is Stage 1: document path -> ordered page stream.
type PageSource interface {
	Open(ctx context.Context, path string) (PageReader, error)
}

// PageResult is the outcome of one extraction call. BlockReason is set
// when the service reported a content block but still returned; the text
// (possibly empty) is still usable.
type PageResult struct {
	Text        string
	BlockReason string
}

// PageExtractor is Stage 2: page image -> structured transcript text.
// Each invocation makes exactly one call to the inference service.
type PageExtractor interface {
	ExtractPage(ctx context.Context, page Page) (PageResult, error)
}
