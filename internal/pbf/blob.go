package pbf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/protoscan"
)

const (
	// Limits from the OSM PBF format definition
	maxBlobHeaderSize = 64 * 1024
	maxBlobSize       = 32 * 1024 * 1024

	blobTypeHeader = "OSMHeader"
	blobTypeData   = "OSMData"
)

// DecodeError is a fatal failure while decoding the PBF stream. It carries
// the byte offset of the blob that failed so the position can be reported.
type DecodeError struct {
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pbf: decode error at byte offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// blob is one framed blob of the file: its kind, the raw Blob message bytes
// (payload still compressed), and the file offset of its length prefix.
type blob struct {
	kind   string
	offset int64
	data   []byte
}

// blobReader reads the file framing: a 4-byte big-endian BlobHeader length,
// the BlobHeader message, then the Blob message of the announced size.
type blobReader struct {
	r      io.Reader
	offset int64
}

func newBlobReader(r io.Reader) *blobReader {
	return &blobReader{r: r}
}

// next returns the next blob, io.EOF at a clean end of stream, or a
// *DecodeError for anything malformed or truncated.
func (br *blobReader) next() (*blob, error) {
	start := br.offset

	var lenBuf [4]byte
	if _, err := io.ReadFull(br.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &DecodeError{Offset: start, Err: fmt.Errorf("truncated blob header length: %w", err)}
	}
	br.offset += 4

	headerSize := int64(binary.BigEndian.Uint32(lenBuf[:]))
	if headerSize <= 0 || headerSize > maxBlobHeaderSize {
		return nil, &DecodeError{Offset: start, Err: fmt.Errorf("blob header size %d out of range", headerSize)}
	}

	headerData := make([]byte, headerSize)
	if _, err := io.ReadFull(br.r, headerData); err != nil {
		return nil, &DecodeError{Offset: start, Err: fmt.Errorf("truncated blob header: %w", err)}
	}
	br.offset += headerSize

	kind, dataSize, err := parseBlobHeader(headerData)
	if err != nil {
		return nil, &DecodeError{Offset: start, Err: err}
	}
	if dataSize <= 0 || dataSize > maxBlobSize {
		return nil, &DecodeError{Offset: start, Err: fmt.Errorf("blob size %d out of range", dataSize)}
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(br.r, data); err != nil {
		return nil, &DecodeError{Offset: start, Err: fmt.Errorf("truncated blob body: %w", err)}
	}
	br.offset += dataSize

	return &blob{kind: kind, offset: start, data: data}, nil
}

// parseBlobHeader decodes a BlobHeader message: type (1) and datasize (3).
func parseBlobHeader(data []byte) (kind string, dataSize int64, err error) {
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 1:
			v, err := msg.String()
			if err != nil {
				return "", 0, fmt.Errorf("blob header type: %w", err)
			}
			kind = v
		case 3:
			v, err := msg.Int32()
			if err != nil {
				return "", 0, fmt.Errorf("blob header datasize: %w", err)
			}
			dataSize = int64(v)
		default:
			msg.Skip()
		}
	}
	if err := msg.Err(); err != nil {
		return "", 0, fmt.Errorf("blob header: %w", err)
	}
	if kind == "" {
		return "", 0, fmt.Errorf("blob header missing type")
	}
	return kind, dataSize, nil
}

var zstdDecoder, _ = zstd.NewReader(nil)

// blobPayload decodes a Blob message and returns its uncompressed payload.
// Supported encodings: raw, zlib, zstd.
func blobPayload(data []byte) ([]byte, error) {
	var (
		raw      []byte
		rawSize  int32
		zlibData []byte
		zstdData []byte
	)

	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 1:
			v, err := msg.Bytes()
			if err != nil {
				return nil, fmt.Errorf("blob raw: %w", err)
			}
			raw = v
		case 2:
			v, err := msg.Int32()
			if err != nil {
				return nil, fmt.Errorf("blob raw_size: %w", err)
			}
			rawSize = v
		case 3:
			v, err := msg.Bytes()
			if err != nil {
				return nil, fmt.Errorf("blob zlib_data: %w", err)
			}
			zlibData = v
		case 7:
			v, err := msg.Bytes()
			if err != nil {
				return nil, fmt.Errorf("blob zstd_data: %w", err)
			}
			zstdData = v
		case 4, 5, 6:
			return nil, fmt.Errorf("unsupported blob compression (field %d)", msg.FieldNumber())
		default:
			msg.Skip()
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("blob: %w", err)
	}

	switch {
	case raw != nil:
		return raw, nil
	case zlibData != nil:
		zr, err := zlib.NewReader(bytes.NewReader(zlibData))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer zr.Close()
		out := make([]byte, 0, rawSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, zr); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		if rawSize > 0 && int32(buf.Len()) != rawSize {
			return nil, fmt.Errorf("zlib: got %d bytes, expected %d", buf.Len(), rawSize)
		}
		return buf.Bytes(), nil
	case zstdData != nil:
		out, err := zstdDecoder.DecodeAll(zstdData, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if rawSize > 0 && int32(len(out)) != rawSize {
			return nil, fmt.Errorf("zstd: got %d bytes, expected %d", len(out), rawSize)
		}
		return out, nil
	}

	return nil, fmt.Errorf("blob has no payload")
}
