package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentBlock is the closed union of typed content a tool invocation may
// return. Unknown wire variants decode to UnknownContent so new server-side
// block types degrade to a visible placeholder instead of an error.
type ContentBlock interface {
	contentBlock()
}

// TextContent is a plain text block.
type TextContent struct {
	Text string
}

// EmbeddedResource is a resource block carrying inline text.
type EmbeddedResource struct {
	URI      string
	MimeType string
	Text     string
}

// ImageContent is an image block; only its media type is surfaced.
type ImageContent struct {
	MimeType string
}

// AudioContent is an audio block; only its media type is surfaced.
type AudioContent struct {
	MimeType string
}

// ResourceLink points at a resource by URI without embedding it.
type ResourceLink struct {
	URI  string
	Name string
}

// UnknownContent is the fallback arm for unrecognized block types.
type UnknownContent struct {
	Type string
	Raw  json.RawMessage
}

func (TextContent) contentBlock()      {}
func (EmbeddedResource) contentBlock() {}
func (ImageContent) contentBlock()     {}
func (AudioContent) contentBlock()     {}
func (ResourceLink) contentBlock()     {}
func (UnknownContent) contentBlock()   {}

// wireContent mirrors the block shape on the wire.
type wireContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
	Name     string `json:"name,omitempty"`
	Resource *struct {
		URI      string `json:"uri,omitempty"`
		MimeType string `json:"mimeType,omitempty"`
		Text     string `json:"text,omitempty"`
	} `json:"resource,omitempty"`
}

// decodeContentBlocks parses a wire-level content array into the union.
func decodeContentBlocks(raw json.RawMessage) ([]ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("mcp: decode content array: %w", err)
	}
	blocks := make([]ContentBlock, 0, len(items))
	for _, item := range items {
		var wc wireContent
		if err := json.Unmarshal(item, &wc); err != nil {
			return nil, fmt.Errorf("mcp: decode content block: %w", err)
		}
		switch wc.Type {
		case "text":
			blocks = append(blocks, TextContent{Text: wc.Text})
		case "resource":
			er := EmbeddedResource{}
			if wc.Resource != nil {
				er.URI = wc.Resource.URI
				er.MimeType = wc.Resource.MimeType
				er.Text = wc.Resource.Text
			}
			blocks = append(blocks, er)
		case "image":
			blocks = append(blocks, ImageContent{MimeType: wc.MimeType})
		case "audio":
			blocks = append(blocks, AudioContent{MimeType: wc.MimeType})
		case "resource_link":
			blocks = append(blocks, ResourceLink{URI: wc.URI, Name: wc.Name})
		default:
			blocks = append(blocks, UnknownContent{Type: wc.Type, Raw: item})
		}
	}
	return blocks, nil
}

// FlattenContent renders a heterogeneous block list as one string. Text and
// inline resource text pass through; binary blocks become placeholders.
func FlattenContent(blocks []ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch b := block.(type) {
		case TextContent:
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case EmbeddedResource:
			switch {
			case b.Text != "":
				parts = append(parts, b.Text)
			case b.URI != "":
				parts = append(parts, fmt.Sprintf("[resource: %s]", b.URI))
			}
		case ImageContent:
			parts = append(parts, placeholder("image", b.MimeType))
		case AudioContent:
			parts = append(parts, placeholder("audio", b.MimeType))
		case ResourceLink:
			label := b.URI
			if b.Name != "" {
				label = b.Name + " " + b.URI
			}
			parts = append(parts, fmt.Sprintf("[resource link: %s]", strings.TrimSpace(label)))
		case UnknownContent:
			parts = append(parts, fmt.Sprintf("[unsupported content: %s]", b.Type))
		}
	}
	return strings.Join(parts, "\n")
}

func placeholder(kind, mime string) string {
	if mime == "" {
		return fmt.Sprintf("[%s]", kind)
	}
	return fmt.Sprintf("[%s: %s]", kind, mime)
}
