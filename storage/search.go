package storage

import (
	"strings"

	"wisdar/model"
)

type MessageMatch struct {
	ConversationID    model.ID
	ConversationTitle string
	MessageIndex      int
	Role              model.MessageRole
	Content           string
	Preview           string
}

// SearchIndex finds messages across all cached conversations. It scans the
// cache rather than the live store so search covers conversations whose
// histories have not been opened this session.
type SearchIndex struct {
	cache *ConversationCache
}

func NewSearchIndex(cache *ConversationCache) *SearchIndex {
	return &SearchIndex{cache: cache}
}

func (si *SearchIndex) SearchAllConversations(query string) ([]MessageMatch, error) {
	if query == "" {
		return []MessageMatch{}, nil
	}

	conversations, err := si.cache.LoadConversations()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var matches []MessageMatch

	for _, conv := range conversations {
		messages, err := si.cache.LoadMessages(conv.ID)
		if err != nil {
			continue
		}

		for i, msg := range messages {
			if msg.Role == model.RoleSystem {
				continue
			}

			if strings.Contains(strings.ToLower(msg.Content), queryLower) {
				preview := msg.Content
				if len(preview) > 100 {
					preview = preview[:100] + "..."
				}

				matches = append(matches, MessageMatch{
					ConversationID:    conv.ID,
					ConversationTitle: conv.Title,
					MessageIndex:      i,
					Role:              msg.Role,
					Content:           msg.Content,
					Preview:           preview,
				})
			}
		}
	}

	return matches, nil
}
