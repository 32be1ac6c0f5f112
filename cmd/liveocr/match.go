package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anime-shed/live-ocr-go/internal/fuzzy"
	"github.com/anime-shed/live-ocr-go/internal/repository"
	"github.com/anime-shed/live-ocr-go/pkg/models"
)

var matchCmd = &cobra.Command{
	Use:   "match <text>",
	Short: "Fuzzy-match text against the dictionary",
	Example: `  liveocr match "NIKE AIR"
  LIVEOCR_MATCHER_DICTIONARY=https://example.com/brands.json liveocr match adidas`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		entries, err := repository.NewDictionaryRepository(cfg.Matcher.Dictionary).Load(cmd.Context())
		if err != nil {
			return err
		}
		searcher := fuzzy.NewSearcher(entries,
			fuzzy.WithMaxResults(cfg.Matcher.MaxResults),
			fuzzy.WithThreshold(cfg.Matcher.Threshold),
		)

		query := strings.Join(args, " ")
		resp := models.MatchResponse{Query: query, Matches: []models.MatchCandidate{}}
		for _, c := range searcher.SearchAll(query) {
			resp.Matches = append(resp.Matches, models.MatchCandidate{Text: c.Text, Score: c.Score})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}
