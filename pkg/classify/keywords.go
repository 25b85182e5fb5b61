package classify

// Keywords holds the trigger lists per category. Entries are matched
// case-insensitively; ASCII entries on word boundaries, others as substrings.
type Keywords struct {
	Code        []string `yaml:"code" json:"code"`
	Creative    []string `yaml:"creative" json:"creative"`
	Math        []string `yaml:"math" json:"math"`
	Translation []string `yaml:"translation" json:"translation"`
	Complex     []string `yaml:"complex" json:"complex"`
}

// DefaultKeywords returns the built-in English and Chinese lists.
func DefaultKeywords() Keywords {
	return Keywords{
		Code: []string{
			"code", "coding", "function", "bug", "debug", "compile", "compiler",
			"algorithm", "implement", "refactor", "api", "regex", "script",
			"stack trace", "unit test", "sql", "python", "golang", "javascript",
			"typescript", "java", "rust", "c++", "c#", "kotlin", "swift", "ruby",
			"php", "bash",
			"代码", "编程", "函数", "程序", "排序", "算法", "调试", "报错",
		},
		Creative: []string{
			"story", "poem", "poetry", "novel", "lyrics", "fiction", "screenplay",
			"haiku", "write a song",
			"故事", "诗", "小说", "创作", "歌词", "剧本",
		},
		Math: []string{
			"math", "calculate", "equation", "solve", "proof", "prove", "integral",
			"derivative", "probability", "logic", "theorem",
			"数学", "计算", "方程", "证明", "求解", "概率", "推理",
		},
		Translation: []string{
			"translate", "translation", "into english", "into chinese",
			"into japanese", "into french", "into german", "into spanish",
			"翻译", "译成",
		},
		Complex: []string{
			"detailed", "in detail", "analyze", "analyse", "analysis", "in-depth",
			"comprehensive", "step by step",
			"详细", "分析", "深入",
		},
	}
}

// merge fills empty categories of k from the defaults.
func (k Keywords) merge(defaults Keywords) Keywords {
	if len(k.Code) == 0 {
		k.Code = defaults.Code
	}
	if len(k.Creative) == 0 {
		k.Creative = defaults.Creative
	}
	if len(k.Math) == 0 {
		k.Math = defaults.Math
	}
	if len(k.Translation) == 0 {
		k.Translation = defaults.Translation
	}
	if len(k.Complex) == 0 {
		k.Complex = defaults.Complex
	}
	return k
}
