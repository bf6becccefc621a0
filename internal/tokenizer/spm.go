package tokenizer

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// ExportSentencePiece serializes the vocabulary as a SentencePiece
// ModelProto. Pieces keep their ids; unk is UNKNOWN, pad and specials are
// CONTROL, structural markers are USER_DEFINED and learned tokens are
// NORMAL with score -id so that earlier tokens are preferred.
func ExportSentencePiece(t *Tokenizer) ([]byte, error) {
	v, err := t.strategy.vocabulary()
	if err != nil {
		return nil, err
	}

	specials := len(t.cfg.reserved())
	model := &gosp.ModelProto{}
	for id, tok := range v.tokens {
		typ := gosp.ModelProto_SentencePiece_NORMAL
		score := -float32(id)
		switch {
		case id == 0:
			typ, score = gosp.ModelProto_SentencePiece_UNKNOWN, 0
		case id < specials:
			typ, score = gosp.ModelProto_SentencePiece_CONTROL, 0
		case v.IsReserved(id):
			typ, score = gosp.ModelProto_SentencePiece_USER_DEFINED, 0
		}
		model.Pieces = append(model.Pieces, &gosp.ModelProto_SentencePiece{
			Piece: proto.String(tok),
			Score: proto.Float32(score),
			Type:  typ.Enum(),
		})
	}

	data, err := proto.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("marshal sentencepiece model: %w", err)
	}
	return data, nil
}

// ReadSentencePiece decodes an exported model back into its pieces in id
// order.
func ReadSentencePiece(data []byte) ([]string, error) {
	var model gosp.ModelProto
	if err := proto.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("%w: unmarshal sentencepiece model: %v", ErrMalformedInput, err)
	}
	out := make([]string, len(model.GetPieces()))
	for i, p := range model.GetPieces() {
		out[i] = p.GetPiece()
	}
	return out, nil
}

// SentencePieceEncoder runs the reference unigram SentencePiece encoder
// over an exported model, for comparison with the native encoding.
type SentencePieceEncoder struct {
	proc gosp.Sentencepiece
}

// NewSentencePieceEncoder loads exported model bytes. The upstream library
// only reads from a path, so the bytes are staged as a temporary file on
// fs, which must be backed by the OS filesystem (an OsFs or a BasePathFs
// over one).
func NewSentencePieceEncoder(fs afero.Fs, data []byte) (*SentencePieceEncoder, error) {
	if fs == nil {
		return nil, errors.New("sentencepiece staging filesystem must not be nil")
	}
	if len(data) == 0 {
		return nil, errors.New("sentencepiece model data must not be empty")
	}

	dir := os.TempDir()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sentencepiece temp dir: %w", err)
	}
	f, err := afero.TempFile(fs, dir, "omnitoken-*.model")
	if err != nil {
		return nil, fmt.Errorf("create temp sentencepiece file: %w", err)
	}
	defer func() { _ = fs.Remove(f.Name()) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write sentencepiece model: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close sentencepiece temp file: %w", err)
	}

	proc, err := gosp.NewSentencepieceFromFile(osPath(fs, f.Name()), false)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model: %w", err)
	}
	return &SentencePieceEncoder{proc: proc}, nil
}

// osPath resolves name on fs to the path the OS sees.
func osPath(fs afero.Fs, name string) string {
	if b, ok := fs.(*afero.BasePathFs); ok {
		return afero.FullBaseFsPath(b, name)
	}
	return name
}

// Encode returns the unigram encoding of text.
func (e *SentencePieceEncoder) Encode(text string) []int {
	if text == "" {
		return []int{}
	}
	ids := e.proc.TokenizeToIDs(text)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
