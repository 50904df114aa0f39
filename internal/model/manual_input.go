package model

import "fmt"

// ManualInput 是手动输入的标签联合，每个领域一个具体类型。
type ManualInput interface {
	Domain() Domain
}

// BaziManualInput 是用户手动输入的四柱。
type BaziManualInput struct {
	YearPillar  string `json:"yearPillar"`
	MonthPillar string `json:"monthPillar"`
	DayPillar   string `json:"dayPillar"`
	HourPillar  string `json:"hourPillar"`
}

func (BaziManualInput) Domain() Domain { return DomainBazi }

// FengshuiManualInput 是用户手动输入的房屋朝向度数。
type FengshuiManualInput struct {
	Facing int `json:"facing"`
}

func (FengshuiManualInput) Domain() Domain { return DomainFengshui }

// CompassManualInput 是用户手动输入的罗盘读数。
type CompassManualInput struct {
	Magnetic  float64 `json:"magnetic"`
	TrueNorth float64 `json:"trueNorth"`
}

func (CompassManualInput) Domain() Domain { return DomainCompass }

// ManualInputEnvelope 是手动输入在 HTTP/WebSocket 上传输的形式。
type ManualInputEnvelope struct {
	Domain   Domain               `json:"domain"`
	Bazi     *BaziManualInput     `json:"bazi,omitempty"`
	Fengshui *FengshuiManualInput `json:"fengshui,omitempty"`
	Compass  *CompassManualInput  `json:"compass,omitempty"`
}

// Unwrap 取出与 Domain 对应的具体手动输入。
func (e ManualInputEnvelope) Unwrap() (ManualInput, error) {
	switch e.Domain {
	case DomainBazi:
		if e.Bazi != nil {
			return *e.Bazi, nil
		}
	case DomainFengshui:
		if e.Fengshui != nil {
			return *e.Fengshui, nil
		}
	case DomainCompass:
		if e.Compass != nil {
			return *e.Compass, nil
		}
	default:
		return nil, fmt.Errorf("unsupported manual input domain %q", e.Domain)
	}
	return nil, fmt.Errorf("manual input for domain %q is empty", e.Domain)
}
