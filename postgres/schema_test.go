package postgres

import (
	"strings"
	"testing"
)

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{
		"drafts",
		"draft_order",
		"auction_lots",
		"auction_proxy_bids",
		"auction_bid_history",
		"nomination_queues",
		"roster_players",
	} {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema missing table %s", table)
		}
	}
	for _, index := range []string{
		"auction_lots_draft_active",
		"auction_lots_draft_player_live",
		"auction_lots_draft_idem",
		"auction_bid_history_idem",
	} {
		if !strings.Contains(schemaSQL, index) {
			t.Errorf("schema missing index %s", index)
		}
	}
}
