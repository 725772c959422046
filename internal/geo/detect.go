package geo

import (
	"strings"

	"github.com/paulmach/orb/geojson"

	"dashboard-ventas/internal/canon"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
)

// citySample：城市层纠正时第一个要素找不到候选列后扫描的要素数
const citySample = 50

// KeyStat：单个属性名在样本上的统计
type KeyStat struct {
	Key      string
	Present  int
	Unique   int
	Presence float64
	Uniq     float64
	AvgAlpha float64
	Score    float64
}

// Detection：一次属性识别的结果
type Detection struct {
	Property   string
	Score      float64
	Overridden bool
	Stats      []KeyStat
}

const accented = "ÁÉÍÓÚÜÑáéíóúüñ"

// alphaRatio：字母字符占比（按字符计）
func alphaRatio(s string) float64 {
	var n, alpha int
	for _, r := range s {
		n++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || strings.ContainsRune(accented, r) {
			alpha++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(alpha) / float64(n)
}

type keyAcc struct {
	present int
	uniq    map[string]struct{}
	alpha   float64
}

// Detect：统计抽样要素的各属性并选出得分最高的名称列
// 约束：同分取先出现者（要素顺序；同一要素内按字典序）；deptKey 为部门层已识别的列，仅城市层使用
func Detect(features []*geojson.Feature, level Level, rules RuleSet, deptKey string) Detection {
	var det Detection
	if len(features) == 0 {
		return det
	}
	sample := len(features)
	if rules.SampleSize > 0 && sample > rules.SampleSize {
		sample = rules.SampleSize
	}

	order := orderedKeys(features, sample)
	acc := make(map[string]*keyAcc, len(order))
	for _, f := range features[:sample] {
		for k := range f.Properties {
			s, ok := propString(f.Properties, k)
			if !ok || strings.HasPrefix(k, "__") {
				continue
			}
			a := acc[k]
			if a == nil {
				a = &keyAcc{uniq: map[string]struct{}{}}
				acc[k] = a
			}
			a.present++
			a.uniq[canon.Base(s)] = struct{}{}
			a.alpha += alphaRatio(s)
		}
	}

	best, bestScore := "", -1.0
	for _, k := range order {
		a := acc[k]
		if a == nil {
			continue
		}
		st := KeyStat{
			Key:      k,
			Present:  a.present,
			Unique:   len(a.uniq),
			Presence: float64(a.present) / float64(sample),
			Uniq:     min(1, float64(len(a.uniq))/float64(sample)),
			AvgAlpha: a.alpha / float64(max(1, a.present)),
		}
		st.Score = rules.score(st)
		det.Stats = append(det.Stats, st)
		if st.Score > bestScore {
			best, bestScore = k, st.Score
		}
	}
	det.Property, det.Score = best, bestScore

	log := logger.Component("geo")
	switch level {
	case LevelCity:
		if best == "" || (deptKey != "" && best == deptKey) || looksLikeDept.MatchString(best) {
			if found := findCityAttribute(features); found != "" {
				if found != best {
					log.Warn("geo_city_prop_override", "from", best, "to", found)
					metrics.DetectOverridesTotal.WithLabelValues(string(level)).Inc()
					det.Overridden = true
				}
				det.Property = found
			} else {
				log.Error("geo_city_prop_missing", "detected", best)
			}
		}
	case LevelDepartment:
		if best == "" {
			if k := firstPresent(acc, deptFallback); k != "" {
				det.Property, det.Overridden = k, true
				metrics.DetectOverridesTotal.WithLabelValues(string(level)).Inc()
			}
		}
	}
	log.Info("geo_detect_done", "level", level, "prop", det.Property, "score", det.Score, "keys", len(det.Stats))
	return det
}

// score：门槛未通过返回 -1
func (rs RuleSet) score(st KeyStat) float64 {
	if st.Presence < rs.MinPresence || st.AvgAlpha < rs.MinAlpha {
		return -1
	}
	s := rs.nameBonus(st.Key)
	s += rs.UniqWeight * st.Uniq
	s += rs.PresenceWeight * st.Presence
	s += rs.AlphaWeight * st.AvgAlpha
	return s
}

// findCityAttribute：先看第一个要素，再扫描前 citySample 个要素
func findCityAttribute(features []*geojson.Feature) string {
	if len(features) == 0 {
		return ""
	}
	for _, c := range cityOverrides {
		if _, ok := features[0].Properties[c]; ok {
			return c
		}
	}
	n := min(len(features), citySample)
	seen := map[string]struct{}{}
	for _, f := range features[:n] {
		for k := range f.Properties {
			seen[k] = struct{}{}
		}
	}
	for _, c := range cityOverrides {
		if _, ok := seen[c]; ok {
			return c
		}
	}
	return ""
}

func firstPresent(acc map[string]*keyAcc, keys []string) string {
	for _, k := range keys {
		if a := acc[k]; a != nil && a.present > 0 {
			return k
		}
	}
	return ""
}
