package model

import (
	"fmt"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS"（Asia/Shanghai）格式输出时间，用于分析历史列表。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

var displayLocation = time.FixedZone("CST", 8*3600)

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", t.String())), nil
}

func (t LocalTime) String() string {
	return time.Time(t).In(displayLocation).Format(timeFormat)
}
