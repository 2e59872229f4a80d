package entry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OptionalTime はJSONでキーの有無とnullを区別して受け取る日時。
//
//   - キーなし: Set=false
//   - null または空文字: Set=true, Time=nil
//   - RFC3339 または YYYY-MM-DD: Set=true, Time=値
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

const dateLayout = "2006-01-02"

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Time = nil

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("consumedAt must be a date string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	t, err := parseDate(s)
	if err != nil {
		return err
	}
	o.Time = &t
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// CreateInput はエントリー作成の入力値。ポインタのnilはキーの欠落を表す。
type CreateInput struct {
	MediaType  *string      `json:"mediaType"`
	Title      *string      `json:"title"`
	Rating     *float64     `json:"rating"`
	Review     *string      `json:"review"`
	ConsumedAt OptionalTime `json:"consumedAt"`
}

// UpdateInput はエントリー部分更新の入力値。nilのフィールドは変更しない。
type UpdateInput struct {
	MediaType  *string      `json:"mediaType"`
	Title      *string      `json:"title"`
	Rating     *float64     `json:"rating"`
	Review     *string      `json:"review"`
	ConsumedAt OptionalTime `json:"consumedAt"`
}
