package tokenizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestSaveLoad_AllMethods(t *testing.T) {
	for _, m := range Methods() {
		t.Run(string(m), func(t *testing.T) {
			cfg := testConfig(m)
			cfg.SpecialTokens = []string{"[CLS]"}
			orig := mustFit(t, cfg, sampleCorpus)

			var buf bytes.Buffer
			if err := orig.Save(&buf); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := Load(&buf)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			if loaded.Method() != m {
				t.Fatalf("Method = %s, want %s", loaded.Method(), m)
			}

			wantTokens, _ := orig.Tokens()
			gotTokens, _ := loaded.Tokens()

			if !equalStrings(gotTokens, wantTokens) {
				t.Fatalf("Tokens differ after reload")
			}

			for _, text := range []string{"the quick fox", "lazy dogs jump over", "unseen words here"} {
				want, _ := orig.Encode(text)

				got, err := loaded.Encode(text)
				if err != nil || !equalInts(got, want) {
					t.Errorf("Encode(%q) = %v, %v; want %v", text, got, err, want)
				}
			}

			wantFreq, _ := orig.TokenFrequencies()
			gotFreq, _ := loaded.TokenFrequencies()

			for tok, n := range wantFreq {
				if gotFreq[tok] != n {
					t.Errorf("frequency(%q) = %d, want %d", tok, gotFreq[tok], n)
				}
			}
		})
	}
}

func TestSaveLoad_HybridOrigins(t *testing.T) {
	orig := mustFit(t, testConfig(MethodHybrid), sampleCorpus)

	var buf bytes.Buffer
	if err := orig.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !strings.Contains(buf.String(), `"word"`) {
		t.Fatalf("origins not serialized as names:\n%s", buf.String())
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	h := loaded.Strategy().(*Hybrid)
	o := orig.Strategy().(*Hybrid)
	size, _ := orig.VocabSize()

	for id := range size {
		want, _ := o.Origin(id)
		if got, _ := h.Origin(id); got != want {
			t.Errorf("Origin(%d) = %s, want %s", id, got, want)
		}
	}
}

func TestLoad_FormatVersionMismatch(t *testing.T) {
	tok := mustFit(t, testConfig(MethodCharacter), sampleCorpus)

	var buf bytes.Buffer
	if err := tok.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, version := range []int{0, FormatVersion + 1} {
		doc["format_version"] = version

		data, _ := json.Marshal(doc)

		_, err := Load(bytes.NewReader(data))
		if !errors.Is(err, ErrFormatVersion) {
			t.Errorf("version %d: err = %v, want ErrFormatVersion", version, err)
		}
	}
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"not json", "{{{", ErrMalformedInput},
		{"bad config", `{"format_version":1,"config":{"method":"bpe","vocab_size":0}}`, ErrInvalidConfig},
		{
			"reserved mismatch",
			`{"format_version":1,"config":{"method":"character","vocab_size":10,"unk_token":"u","pad_token":"p"},` +
				`"vocab":{"tokens":["u"],"frequencies":[0],"reserved":1}}`,
			ErrMalformedInput,
		},
		{
			"bad merge rank",
			`{"format_version":1,"config":{"method":"sentencepiece","vocab_size":10,"unk_token":"u","pad_token":"p"},` +
				`"vocab":{"tokens":["u","p","▁","a","aa"],"frequencies":[0,0,0,2,1],"reserved":3},` +
				`"merges":[{"left":"a","right":"a","merged":"aa","rank":4}]}`,
			ErrMalformedInput,
		},
		{
			"unknown route",
			`{"format_version":1,"config":{"method":"hybrid","vocab_size":10,"unk_token":"u","pad_token":"p",` +
				`"char_ratio":0.3,"word_ratio":0.4,"subword_ratio":0.3},` +
				`"vocab":{"tokens":["u","p","▁"],"frequencies":[0,0,0],"reserved":3},"origins":["reserved","reserved","bogus"]}`,
			ErrMalformedInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSaveFileLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	tok := mustFit(t, testConfig(MethodWordPiece), sampleCorpus)

	if err := tok.SaveFile(fs, "models/wp.json"); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded, err := LoadFile(fs, "models/wp.json")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want, _ := tok.Encode("the lazy dog")
	got, _ := loaded.Encode("the lazy dog")

	if !equalInts(got, want) {
		t.Fatalf("Encode = %v, want %v", got, want)
	}

	if _, err := LoadFile(fs, "models/missing.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
