package pipeline

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/joshuarp/controller-sdk/schema"
)

// Multipart/related payloads carry a JSON root part whose string values may
// reference binary sibling parts by content id ("cid:DATA_0"). Binary parts
// travel base64 encoded.

const contentIDPrefix = "DATA_"

func textprotoHeader(contentType, contentID string) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	if contentID != "" {
		h.Set("Content-Id", "<"+contentID+">")
		h.Set("Content-Transfer-Encoding", "base64")
	}
	return h
}

// buildRelated assembles a multipart/related body from a JSON-compatible
// tree. Binary values are lifted into their own parts and replaced in the
// tree by a cid reference. Returns the body and its full content type.
func buildRelated(root interface{}) ([]byte, string, error) {
	var parts []schema.Binary
	lifted := liftBinaries(root, &parts)

	rootJSON, err := json.Marshal(lifted)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: failed to encode multipart root: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	rootHeader := textprotoHeader("application/json", "")
	rootPart, err := w.CreatePart(rootHeader)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: failed to open multipart root: %w", err)
	}
	if _, err := rootPart.Write(rootJSON); err != nil {
		return nil, "", fmt.Errorf("pipeline: failed to write multipart root: %w", err)
	}

	for i, bin := range parts {
		header := textprotoHeader(bin.MimeType, fmt.Sprintf("%s%d", contentIDPrefix, i))
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("pipeline: failed to open multipart part: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(bin.Data)
		if _, err := io.WriteString(part, encoded); err != nil {
			return nil, "", fmt.Errorf("pipeline: failed to write multipart part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("pipeline: failed to finish multipart body: %w", err)
	}

	contentType := `multipart/related; type="application/json"; boundary=` + w.Boundary()
	return buf.Bytes(), contentType, nil
}

// liftBinaries walks the tree, moving Binary values into parts and leaving
// cid references behind.
func liftBinaries(value interface{}, parts *[]schema.Binary) interface{} {
	switch v := value.(type) {
	case schema.Binary:
		ref := fmt.Sprintf("cid:%s%d", contentIDPrefix, len(*parts))
		*parts = append(*parts, v)
		return ref
	case *schema.Binary:
		return liftBinaries(*v, parts)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = liftBinaries(item, parts)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = liftBinaries(item, parts)
		}
		return out
	default:
		return value
	}
}

// parseRelated splits a multipart/related body on its boundary and returns
// the JSON root tree with cid references resolved into Binary values.
func parseRelated(body []byte, contentType string) (interface{}, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("pipeline: bad multipart content type: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("pipeline: multipart content type carries no boundary")
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)

	var root interface{}
	binaries := make(map[string]schema.Binary)
	first := true
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: failed to read multipart part: %w", err)
		}

		payload, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("pipeline: failed to read multipart payload: %w", err)
		}

		if first {
			first = false
			if err := json.Unmarshal(payload, &root); err != nil {
				return nil, fmt.Errorf("pipeline: multipart root is not JSON: %w", err)
			}
			continue
		}

		id := strings.Trim(part.Header.Get("Content-Id"), "<>")
		data := payload
		if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "base64") {
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(payload)))
			if err != nil {
				return nil, fmt.Errorf("pipeline: part %s is not valid base64: %w", id, err)
			}
			data = decoded
		}
		binaries[id] = schema.Binary{
			MimeType: part.Header.Get("Content-Type"),
			Data:     data,
		}
	}

	return resolveBinaries(root, binaries), nil
}

// resolveBinaries replaces cid reference strings in the tree with their
// decoded parts.
func resolveBinaries(value interface{}, binaries map[string]schema.Binary) interface{} {
	switch v := value.(type) {
	case string:
		if ref, ok := strings.CutPrefix(v, "cid:"); ok {
			if bin, found := binaries[ref]; found {
				return bin
			}
		}
		return v
	case map[string]interface{}:
		for k, item := range v {
			v[k] = resolveBinaries(item, binaries)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = resolveBinaries(item, binaries)
		}
		return v
	default:
		return value
	}
}
