package model

import "fmt"

// Period 报告期（年 + 季度）
type Period struct {
	Year    int `json:"year" validate:"required,gte=1990,lte=2100"`
	Quarter int `json:"quarter" validate:"required,min=1,max=4"`
}

// AnnualizationFactor 将季度累计净利润折算为全年的系数
// Q1→4, Q2→2, Q3→4/3, Q4→1
func (p Period) AnnualizationFactor() float64 {
	switch p.Quarter {
	case 1:
		return 4
	case 2:
		return 2
	case 3:
		return 4.0 / 3.0
	default:
		return 1
	}
}

func (p Period) String() string {
	return fmt.Sprintf("%d Q%d", p.Year, p.Quarter)
}
