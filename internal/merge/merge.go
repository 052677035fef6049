package merge

import (
	"errors"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

// DisplayDivisor 新提取数据换算为展示单位（十亿）的除数
const DisplayDivisor = 1e9

// ErrNothingToDo 没有新数据，也没有旧的输出文件
var ErrNothingToDo = errors.New("no new records and no prior dataset")

// Outcome 合并结果类型
type Outcome string

const (
	OutcomeMerged    Outcome = "merged"     // 新旧数据合并
	OutcomePriorOnly Outcome = "prior_only" // 无新数据，沿用旧数据
	OutcomeNewOnly   Outcome = "new_only"   // 无旧文件
)

// Input 合并输入
type Input struct {
	Prior    model.Dataset // 旧输出文件 Data 表（已是展示单位）
	HasPrior bool          // 旧输出文件是否存在
	New      model.Dataset // 本次提取的记录（原始单位）
	Divisor  float64       // <=0 时使用 DisplayDivisor
}

// Result 合并结果
type Result struct {
	Dataset model.Dataset
	Outcome Outcome
	Added   int // 新增实体数
	Updated int // 覆盖旧实体数
}

// Merge 合并旧数据与新数据
// 新数据先除以 Divisor，再追加到旧数据之后，按实体代码去重并保留最后一次出现
func Merge(in Input) (Result, error) {
	if len(in.New) == 0 {
		if !in.HasPrior {
			return Result{}, ErrNothingToDo
		}
		return Result{Dataset: stripSource(DedupeKeepLast(in.Prior)), Outcome: OutcomePriorOnly}, nil
	}

	divisor := in.Divisor
	if divisor <= 0 {
		divisor = DisplayDivisor
	}

	combined := make(model.Dataset, 0, len(in.Prior)+len(in.New))
	combined = append(combined, in.Prior...)
	for _, r := range in.New {
		combined = append(combined, scale(r, divisor))
	}

	priorCodes := in.Prior.Codes()
	added, updated := 0, 0
	seenNew := make(map[string]struct{}, len(in.New))
	for _, r := range in.New {
		if _, dup := seenNew[r.EntityCode]; dup {
			continue
		}
		seenNew[r.EntityCode] = struct{}{}
		if _, ok := priorCodes[r.EntityCode]; ok {
			updated++
		} else {
			added++
		}
	}

	outcome := OutcomeMerged
	if !in.HasPrior {
		outcome = OutcomeNewOnly
	}

	return Result{
		Dataset: stripSource(DedupeKeepLast(combined)),
		Outcome: outcome,
		Added:   added,
		Updated: updated,
	}, nil
}

// DedupeKeepLast 按实体代码去重，保留最后一次出现的记录
// 结果保持各实体最后一次出现的相对顺序
func DedupeKeepLast(ds model.Dataset) model.Dataset {
	last := make(map[string]int, len(ds))
	for i, r := range ds {
		last[r.EntityCode] = i
	}
	out := make(model.Dataset, 0, len(last))
	for i, r := range ds {
		if last[r.EntityCode] == i {
			out = append(out, r)
		}
	}
	return out
}

func scale(r model.NormalizedRecord, divisor float64) model.NormalizedRecord {
	values := make(map[model.Metric]float64, len(r.Values))
	for m, v := range r.Values {
		values[m] = v / divisor
	}
	return model.NormalizedRecord{
		EntityCode: r.EntityCode,
		Values:     values,
		SourceFile: r.SourceFile,
	}
}

func stripSource(ds model.Dataset) model.Dataset {
	out := make(model.Dataset, len(ds))
	for i, r := range ds {
		r.SourceFile = ""
		out[i] = r
	}
	return out
}
