package conversation

import (
	"context"

	"github.com/normanking/cortexstream/internal/a2a"
	"github.com/normanking/cortexstream/internal/pipeline"
)

// Image is an optional vision attachment accompanying one turn's input.
type Image struct {
	Base64   string
	MimeType string
}

// ModelClient streams a conversational model's reply as a TextFragment
// stream, decoupling the controller from the concrete agent transport.
// image is nil for text-only turns.
type ModelClient interface {
	Stream(ctx context.Context, text string, image *Image) (<-chan pipeline.TextFragment, error)
}

// A2AModelClient adapts an a2a.Client's streaming RPC into the
// pipeline.TextFragment stream the sentence divider consumes.
type A2AModelClient struct {
	client *a2a.Client
}

// NewA2AModelClient wraps an already-configured A2A client.
func NewA2AModelClient(client *a2a.Client) *A2AModelClient {
	return &A2AModelClient{client: client}
}

// Stream sends text (and, if present, a vision attachment) to the agent
// backend and forwards each incremental delta as a text fragment. A
// streaming error is forwarded as a record so the divider (and ultimately
// the controller) can surface it, rather than silently truncating the
// response.
func (m *A2AModelClient) Stream(ctx context.Context, text string, image *Image) (<-chan pipeline.TextFragment, error) {
	var respCh <-chan a2a.StreamingResponse
	var err error
	if image != nil && image.Base64 != "" {
		respCh, err = m.client.SendMessageStreamChanWithOptions(ctx, text, a2a.SendMessageOptions{
			ImageBase64: image.Base64,
			MimeType:    image.MimeType,
		})
	} else {
		respCh, err = m.client.SendMessageStreamChan(ctx, text)
	}
	if err != nil {
		return nil, err
	}

	out := make(chan pipeline.TextFragment)
	go func() {
		defer close(out)
		for resp := range respCh {
			if resp.Error != nil {
				select {
				case out <- pipeline.NewRecordFragment(map[string]any{"error": resp.Error.Error()}):
				case <-ctx.Done():
				}
				return
			}
			if resp.Delta != "" {
				select {
				case out <- pipeline.NewTextFragment(resp.Delta):
				case <-ctx.Done():
					return
				}
			}
			if resp.IsFinal {
				return
			}
		}
	}()

	return out, nil
}
