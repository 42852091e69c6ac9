// Package bgremove strips the background from an uploaded logo using the
// OpenAI image edit API. The transform is optional: without credentials it
// degrades to the identity, and BestEffort turns every failure into the
// original image.
package bgremove

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/roach88/cmstory/internal/imaging"
)

// Instruction is the fixed edit prompt sent with every logo.
const Instruction = `Background removal and logo isolation.
1. Keep the main logo symbol and the brand name text "CM STORY" or "씨엠스토리".
2. Remove every background pixel.
3. The result must be a PNG with a fully transparent alpha channel.`

// ErrNoImage is returned when the service answers without image data.
var ErrNoImage = errors.New("no image in response")

// Transformer rewrites a data-URI image.
type Transformer interface {
	Transform(ctx context.Context, dataURI string) (string, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, dataURI string) (string, error)

func (f TransformerFunc) Transform(ctx context.Context, dataURI string) (string, error) {
	return f(ctx, dataURI)
}

// Identity returns its input unchanged.
var Identity Transformer = TransformerFunc(func(_ context.Context, dataURI string) (string, error) {
	return dataURI, nil
})

// Options configure a Remover.
type Options struct {
	Model  openai.ImageModel
	Prompt string
}

// Remover calls the image edit endpoint.
type Remover struct {
	client *openai.Client
	opts   Options
}

// New returns a Remover for apiKey, or Identity when apiKey is empty.
func New(apiKey string, logger *slog.Logger, reqOpts ...option.RequestOption) Transformer {
	if apiKey == "" {
		if logger != nil {
			logger.Warn("OPENAI_API_KEY is not set, logo background removal disabled")
		}
		return Identity
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)...)
	return NewFromClient(&client)
}

// NewFromClient creates a Remover from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Remover {
	opts := Options{
		Model:  openai.ImageModelGPTImage1,
		Prompt: Instruction,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Remover{client: client, opts: opts}
}

// Transform sends the image with the fixed instruction and returns the
// edited image as a PNG data URI.
func (r *Remover) Transform(ctx context.Context, dataURI string) (string, error) {
	img, err := imaging.Decode(dataURI)
	if err != nil {
		return "", fmt.Errorf("background removal: %w", err)
	}

	resp, err := r.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(img.Data), "logo"+extension(img.ContentType), img.ContentType),
		},
		Prompt: r.opts.Prompt,
		Model:  r.opts.Model,
	})
	if err != nil {
		return "", fmt.Errorf("background removal: %w", err)
	}

	for _, out := range resp.Data {
		if out.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(out.B64JSON)
		if err != nil {
			return "", fmt.Errorf("background removal: decode result: %w", err)
		}
		return imaging.Encode(data, "image/png")
	}
	return "", fmt.Errorf("background removal: %w", ErrNoImage)
}

// BestEffort wraps t so that it never fails: errors are logged and the input
// image is returned unchanged.
func BestEffort(t Transformer, logger *slog.Logger) func(ctx context.Context, dataURI string) string {
	return func(ctx context.Context, dataURI string) string {
		out, err := t.Transform(ctx, dataURI)
		if err != nil {
			logger.Error("logo refinement failed, keeping original", "error", err)
			return dataURI
		}
		if out == "" {
			return dataURI
		}
		return out
	}
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
