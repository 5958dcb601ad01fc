package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"sort"
	"strings"

	"chat-relay/errors"
)

//go:embed censored/*.txt
var censoredFS embed.FS

// CensoredData carries the loading result including metadata for logging.
type CensoredData struct {
	Words     []string
	Languages []string
}

// LoadCensoredWords parses the embedded language dictionaries into a unique,
// sorted word list. One .txt file per language, one word per line.
func LoadCensoredWords() (*CensoredData, error) {
	entries, err := fs.ReadDir(censoredFS, "censored")
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// "en.txt" -> "en"
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := censoredFS.ReadFile("censored/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings correctly
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	sort.Strings(words)

	return &CensoredData{Words: words, Languages: languages}, nil
}
