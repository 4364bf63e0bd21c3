package enrichment

import "strings"

// Topic labels
const (
	LabelTechnology    = "technology"
	LabelLifestyle     = "lifestyle"
	LabelFinance       = "finance"
	LabelEducation     = "education"
	LabelEntertainment = "entertainment"
	LabelSports        = "sports"
	LabelOther         = "other"
)

// Labels lists every label in prompt order.
var Labels = []string{
	LabelTechnology,
	LabelLifestyle,
	LabelFinance,
	LabelEducation,
	LabelEntertainment,
	LabelSports,
	LabelOther,
}

// labelKeywords drives the local keyword-overlap classifier.
var labelKeywords = map[string][]string{
	LabelTechnology: {
		"技术", "科技", "AI", "人工智能", "编程", "代码", "软件", "硬件", "互联网",
		"technology", "software", "hardware", "programming", "code", "internet", "artificial intelligence",
	},
	LabelLifestyle: {
		"生活", "日常", "美食", "旅行", "健康", "运动", "家庭", "情感",
		"lifestyle", "food", "travel", "health", "family", "recipe",
	},
	LabelFinance: {
		"经济", "金融", "投资", "股票", "基金", "理财", "创业", "商业",
		"economy", "finance", "investment", "stock", "fund", "startup", "business",
	},
	LabelEducation: {
		"学习", "教育", "培训", "知识", "课程", "考试", "学校",
		"education", "learning", "training", "course", "exam", "school", "university",
	},
	LabelEntertainment: {
		"电影", "音乐", "游戏", "综艺", "明星", "娱乐", "搞笑",
		"movie", "film", "music", "game", "celebrity", "entertainment", "comedy",
	},
	LabelSports: {
		"体育", "足球", "篮球", "运动", "比赛", "运动员", "健身",
		"sports", "football", "soccer", "basketball", "match", "athlete", "fitness",
	},
}

// labelAliases maps names a provider may answer with onto the canonical labels.
var labelAliases = map[string]string{
	"科技":   LabelTechnology,
	"tech": LabelTechnology,
	"生活":   LabelLifestyle,
	"life": LabelLifestyle,
	"财经":   LabelFinance,
	"教育":   LabelEducation,
	"娱乐":   LabelEntertainment,
	"体育":   LabelSports,
	"sport": LabelSports,
	"其他":   LabelOther,
}

// textScanConfidence is assigned when a provider answers in prose that
// merely mentions a label.
var textScanConfidence = []struct {
	label      string
	confidence float64
}{
	{LabelTechnology, 0.8},
	{LabelLifestyle, 0.6},
	{LabelFinance, 0.7},
	{LabelEducation, 0.6},
	{LabelEntertainment, 0.5},
	{LabelSports, 0.5},
}

// canonicalLabel resolves a provider label, returning "" for unknown labels.
func canonicalLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, known := range Labels {
		if l == known {
			return known
		}
	}
	if alias, ok := labelAliases[l]; ok {
		return alias
	}
	return ""
}

func otherOnly() map[string]float64 {
	return map[string]float64{LabelOther: 1.0}
}
