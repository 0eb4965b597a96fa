package search

import "github.com/hyperjump/ragchat/pkg/utils"

// PreviewLength is the number of characters of content shown per result in listings.
const PreviewLength = 200

// Preview returns content cut to maxLen characters with "..." appended when cut.
func Preview(content string, maxLen int) string {
	if maxLen <= 0 {
		return content
	}
	return utils.Truncate(content, maxLen)
}
