package wire

import "strings"

// Token is one unit of a chat message. The service represents messages
// as token lists rather than flat strings.
type Token struct {
	T string `json:"t"`
	V string `json:"v"`
}

// Token kinds.
const (
	TokenText    = "text"
	TokenMention = "mention"
	TokenEmote   = "emote"
	TokenLink    = "link"
	TokenBlock   = "block"
)

// Tokenize splits a message into service tokens, one per word.
func Tokenize(message string) []Token {
	words := strings.Split(message, " ")
	tokens := make([]Token, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, tokenizeWord(w))
	}
	return tokens
}

func tokenizeWord(word string) Token {
	switch {
	case len(word) > 1 && strings.HasPrefix(word, "@"):
		return Token{T: TokenMention, V: word[1:]}
	case len(word) > 2 && strings.HasPrefix(word, ":") && strings.HasSuffix(word, ":"):
		return Token{T: TokenEmote, V: word[1 : len(word)-1]}
	case len(word) > 2 && strings.HasPrefix(word, "`") && strings.HasSuffix(word, "`"):
		return Token{T: TokenBlock, V: word[1 : len(word)-1]}
	case strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://"):
		return Token{T: TokenLink, V: word}
	default:
		return Token{T: TokenText, V: word}
	}
}

// Render joins tokens back into a readable message string.
func Render(tokens []Token) string {
	var b strings.Builder
	for i, tok := range tokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch tok.T {
		case TokenMention:
			b.WriteByte('@')
			b.WriteString(tok.V)
		case TokenEmote:
			b.WriteByte(':')
			b.WriteString(tok.V)
			b.WriteByte(':')
		case TokenBlock:
			b.WriteByte('`')
			b.WriteString(tok.V)
			b.WriteByte('`')
		default:
			b.WriteString(tok.V)
		}
	}
	return b.String()
}
