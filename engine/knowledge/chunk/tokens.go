package chunk

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/compozy/arag/pkg/logger"
)

const DefaultEncoding = "cl100k_base"

var (
	encodersMu sync.Mutex
	encoders   = map[string]*tiktoken.Tiktoken{}
	failed     = map[string]bool{}
)

// TokenCounter returns a function counting tokens of encoding. When the
// encoding cannot be loaded it estimates four characters per token.
func TokenCounter(encoding string) func(string) int {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc := loadEncoding(encoding)
	if enc == nil {
		return EstimateTokens
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// EstimateTokens approximates a token count from the rune count.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

func loadEncoding(name string) *tiktoken.Tiktoken {
	encodersMu.Lock()
	defer encodersMu.Unlock()
	if enc, ok := encoders[name]; ok {
		return enc
	}
	if failed[name] {
		return nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		failed[name] = true
		logger.GetDefault().Warn("Token encoding unavailable, estimating token counts", "encoding", name, "error", err)
		return nil
	}
	encoders[name] = enc
	return enc
}
