// Package tiledata holds the per-language static letter-frequency tables
// and produces the initial tile multiset ("bag") for a conversation.
package tiledata

import (
	"fmt"
	"math/rand"
	"sort"
)

// letterWeight pairs one tile face with its canonical weight. Weights are
// defined against the long (122-tile) game and scaled down proportionally
// for the short (50-tile) game.
type letterWeight struct {
	letter string
	weight int
}

// LongTileCount and ShortTileCount are the two supported game sizes.
const (
	LongTileCount  = 122
	ShortTileCount = 50
)

// canonicalWeightSum is the sum every language table must hit; it anchors
// FillBag's proportional scaling.
const canonicalWeightSum = LongTileCount

var tables = map[string][]letterWeight{
	"en": {
		{"A", 12}, {"B", 2}, {"C", 2}, {"D", 4}, {"E", 18}, {"F", 2}, {"G", 3},
		{"H", 2}, {"I", 12}, {"J", 1}, {"K", 1}, {"L", 6}, {"M", 2}, {"N", 8},
		{"O", 10}, {"P", 2}, {"Q", 1}, {"R", 8}, {"S", 6}, {"T", 8}, {"U", 4},
		{"V", 2}, {"W", 2}, {"X", 1}, {"Y", 2}, {"Z", 1},
	},
	"fr": {
		{"A", 13}, {"B", 2}, {"C", 2}, {"D", 3}, {"E", 25}, {"F", 2}, {"G", 2},
		{"H", 2}, {"I", 12}, {"J", 1}, {"K", 1}, {"L", 5}, {"M", 3}, {"N", 8},
		{"O", 8}, {"P", 2}, {"Q", 1}, {"R", 6}, {"S", 6}, {"T", 6}, {"U", 6},
		{"V", 2}, {"W", 1}, {"X", 1}, {"Y", 1}, {"Z", 1},
	},
	"eo": {
		{"A", 16}, {"B", 1}, {"C", 1}, {"Ĉ", 1}, {"D", 4}, {"E", 14}, {"F", 1},
		{"G", 2}, {"Ĝ", 1}, {"H", 1}, {"Ĥ", 1}, {"I", 12}, {"J", 3}, {"Ĵ", 1},
		{"K", 3}, {"L", 7}, {"M", 3}, {"N", 11}, {"O", 13}, {"P", 2}, {"R", 5},
		{"S", 5}, {"Ŝ", 1}, {"T", 5}, {"U", 4}, {"Ŭ", 1}, {"V", 2}, {"Z", 1},
	},
	"en-sv": {
		{"A", 10}, {"B", 2}, {"C", 2}, {"D", 4}, {"E", 16}, {"F", 2}, {"G", 3},
		{"H", 2}, {"I", 10}, {"J", 1}, {"K", 1}, {"L", 6}, {"M", 2}, {"N", 8},
		{"O", 10}, {"P", 2}, {"Q", 1}, {"R", 8}, {"S", 6}, {"T", 8}, {"U", 4},
		{"V", 2}, {"W", 2}, {"X", 1}, {"Y", 2}, {"Z", 1}, {"Å", 2}, {"Ä", 2}, {"Ö", 2},
	},
}

func init() {
	for lang, table := range tables {
		sum := 0
		for _, lw := range table {
			sum += lw.weight
		}
		if sum != canonicalWeightSum {
			panic(fmt.Sprintf("tiledata: language %q weights sum to %d, want %d", lang, sum, canonicalWeightSum))
		}
	}
}

// Languages returns the supported language codes, sorted.
func Languages() []string {
	out := make([]string, 0, len(tables))
	for lang := range tables {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether code names a known language table.
func Supported(code string) bool {
	_, ok := tables[code]
	return ok
}

// FillBag produces the initial tile multiset for a game of n tiles
// (ShortTileCount or LongTileCount) in the given language: it scales the
// canonical per-letter weights down to n tiles using the largest-remainder
// method, then samples that multiset without replacement (a random
// shuffle) using rng, so callers can inject a deterministic source for
// reproducible tests. The returned slice has exactly n entries; index i of
// the result is the letter assigned to tile index i.
func FillBag(language string, n int, rng *rand.Rand) ([]string, error) {
	table, ok := tables[language]
	if !ok {
		return nil, fmt.Errorf("tiledata: unsupported language %q", language)
	}
	if n <= 0 {
		return nil, fmt.Errorf("tiledata: invalid tile count %d", n)
	}

	counts := scaleWeights(table, n)

	bag := make([]string, 0, n)
	for i, lw := range table {
		for c := 0; c < counts[i]; c++ {
			bag = append(bag, lw.letter)
		}
	}

	rng.Shuffle(len(bag), func(i, j int) {
		bag[i], bag[j] = bag[j], bag[i]
	})

	return bag, nil
}

// scaleWeights scales table's weights (which sum to canonicalWeightSum) to
// a total of exactly n, using the largest-remainder (Hamilton) apportionment
// method: each letter gets floor(weight*n/sum) tiles, then the letters with
// the largest fractional remainder receive one extra tile each until the
// total reaches n.
func scaleWeights(table []letterWeight, n int) []int {
	counts := make([]int, len(table))
	remainders := make([]float64, len(table))

	assigned := 0
	for i, lw := range table {
		scaled := float64(lw.weight) * float64(n) / float64(canonicalWeightSum)
		counts[i] = int(scaled)
		remainders[i] = scaled - float64(counts[i])
		assigned += counts[i]
	}

	order := make([]int, len(table))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})

	for i := 0; assigned < n; i++ {
		counts[order[i%len(order)]]++
		assigned++
	}

	return counts
}
