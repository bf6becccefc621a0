package testutil_test

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/example/go-omnitoken/internal/testutil"
	"github.com/example/go-omnitoken/internal/tokenizer"
)

func TestCorpus_CoversAlphabet(t *testing.T) {
	joined := strings.Join(testutil.Corpus, " ")
	for r := 'a'; r <= 'z'; r++ {
		if !strings.ContainsRune(joined, r) {
			t.Errorf("corpus is missing %q", r)
		}
	}
}

func TestTrainedModel_AllMethods(t *testing.T) {
	for _, m := range tokenizer.Methods() {
		t.Run(string(m), func(t *testing.T) {
			tok := testutil.TrainedModel(t, m)

			ok, err := tok.VerifyRoundTrip("the quick dog")
			if err != nil || !ok {
				t.Errorf("VerifyRoundTrip = %v, %v; want true", ok, err)
			}
		})
	}
}

func TestMemFS(t *testing.T) {
	fs := testutil.MemFS(t, map[string]string{"a/b.txt": "hello"})

	got, err := afero.ReadFile(fs, "a/b.txt")
	if err != nil || string(got) != "hello" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
}

func TestSavedModel_Loads(t *testing.T) {
	fs := testutil.SavedModel(t, tokenizer.MethodWordPiece, "m/model.json")

	tok, err := tokenizer.LoadFile(fs, "m/model.json")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if tok.Method() != tokenizer.MethodWordPiece {
		t.Errorf("Method = %s; want wordpiece", tok.Method())
	}
}
