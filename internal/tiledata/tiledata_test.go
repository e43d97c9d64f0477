package tiledata

import (
	"math/rand"
	"testing"
)

func TestFillBagProducesExactCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, lang := range Languages() {
		for _, n := range []int{ShortTileCount, LongTileCount} {
			bag, err := FillBag(lang, n, rng)
			if err != nil {
				t.Fatalf("FillBag(%q, %d): %v", lang, n, err)
			}
			if len(bag) != n {
				t.Fatalf("FillBag(%q, %d) produced %d tiles", lang, n, len(bag))
			}
			for _, letter := range bag {
				if letter == "" {
					t.Fatalf("FillBag(%q, %d) produced an empty letter", lang, n)
				}
			}
		}
	}
}

func TestFillBagRejectsUnsupportedLanguage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := FillBag("xx", 50, rng); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestFillBagRejectsNonPositiveCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := FillBag("en", 0, rng); err == nil {
		t.Fatal("expected error for zero tile count")
	}
}

func TestFillBagDeterministicWithSameSeed(t *testing.T) {
	bag1, err := FillBag("en", ShortTileCount, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	bag2, err := FillBag("en", ShortTileCount, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	for i := range bag1 {
		if bag1[i] != bag2[i] {
			t.Fatalf("bags diverge at index %d: %q vs %q", i, bag1[i], bag2[i])
		}
	}
}

func TestSupportedLanguages(t *testing.T) {
	for _, lang := range []string{"en", "fr", "eo", "en-sv"} {
		if !Supported(lang) {
			t.Errorf("expected %q to be supported", lang)
		}
	}
	if Supported("de") {
		t.Error("did not expect German to be supported")
	}
}

func TestScaleWeightsSumsToLongCount(t *testing.T) {
	for lang, table := range tables {
		counts := scaleWeights(table, LongTileCount)
		sum := 0
		for _, c := range counts {
			sum += c
		}
		if sum != LongTileCount {
			t.Fatalf("language %q: scaled counts sum to %d, want %d", lang, sum, LongTileCount)
		}
	}
}

func TestScaleWeightsSumsToShortCount(t *testing.T) {
	for lang, table := range tables {
		counts := scaleWeights(table, ShortTileCount)
		sum := 0
		for _, c := range counts {
			sum += c
		}
		if sum != ShortTileCount {
			t.Fatalf("language %q: scaled counts sum to %d, want %d", lang, sum, ShortTileCount)
		}
	}
}
