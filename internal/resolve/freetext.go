package resolve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"formvoice/agent/internal/types"
)

func nameHints(name string, hints ...string) bool {
	n := strings.ToLower(name)
	for _, h := range hints {
		if strings.Contains(n, h) {
			return true
		}
	}
	return false
}

func (r *Resolver) freeText(ctx context.Context, f types.Field, question, text string) Decision {
	if nameHints(f.Name, "email", "e-mail") {
		if e, ok := NormalizeEmail(text); ok {
			return Committed(e)
		}
	}
	if nameHints(f.Name, "phone", "mobile", "tel", "contact_number") {
		if d := Digits(text); len(d) >= phoneDigits {
			return Committed(FormatPhone(d, r.countryCode))
		}
	}
	if r.extractor == nil {
		return Retrying(MsgNotCaught)
	}

	ans, err := r.extractor.Extract(ctx, f, question, text)
	if err != nil {
		metricExtractorErrors.Inc()
		r.logger.Warn("extractor failed", zap.String("field", f.Name), zap.Error(err))
		d := Retrying(MsgNotCaught)
		d.Cause = fmt.Errorf("extract %s: %w", f.Name, err)
		return d
	}
	if ans = strings.TrimSpace(ans); ans == "" {
		return Retrying(MsgNotCaught)
	}
	return Committed(ans)
}
