package intent

import "regexp"

// 八字核心术语：命中即可确定为八字分析。
var baziCoreKeywords = []string{
	"八字", "四柱", "命理", "算命", "排盘", "命盘", "批命", "命格", "日主", "合婚",
}

// keywordGroup 是一组同类辅助词汇。
type keywordGroup struct {
	name  string
	words []string
}

// 八字辅助词汇，按类别分组。
var baziWeakKeywords = []keywordGroup{
	{"tenGods", []string{"正官", "七杀", "偏官", "正财", "偏财", "正印", "偏印", "食神", "伤官", "比肩", "劫财"}},
	{"luck", []string{"大运", "流年", "流月", "小运", "运势", "运程", "命运", "财运", "事业运", "姻缘", "桃花"}},
	{"element", []string{"五行", "喜用神", "用神", "忌神", "缺金", "缺木", "缺水", "缺火", "缺土"}},
	{"birth", birthVocabulary},
}

// 出生相关词汇，同时用于区分“出生地”与“房屋地址”。
var birthVocabulary = []string{"出生", "生日", "生辰", "时辰", "阳历", "农历", "公历", "阴历"}

// 风水核心术语：命中即可确定为风水分析。
var fengshuiCoreKeywords = []string{
	"风水", "玄空", "飞星", "阳宅", "宅运", "坐向", "罗盘", "堪舆", "八宅",
}

// 风水辅助词汇，按类别分组。
var fengshuiWeakKeywords = []keywordGroup{
	{"direction", []string{"朝向", "方位", "东南", "西南", "东北", "西北"}},
	{"room", []string{"户型", "布局", "格局", "客厅", "卧室", "厨房", "卫生间", "书房", "大门", "阳台", "房子", "住宅", "家居", "装修", "床头", "房间"}},
	{"star", []string{"一白", "二黑", "三碧", "四绿", "五黄", "六白", "七赤", "八白", "九紫"}},
	{"remedy", []string{"化煞", "化解", "摆件", "镇宅", "催旺", "招财", "摆放"}},
}

// 明确指代房屋的词汇；出现时方位描述按房屋朝向处理，即使消息中含出生词汇。
var houseVocabulary = []string{"房", "屋", "宅", "家里", "我家", "大门", "门口", "阳台", "户型", "小区"}

var (
	// 排除模式：问候、闲聊与纯定义类提问。
	exclusionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*(你好|您好|嗨|哈喽|早上好|晚上好|下午好|hi|hello|hey)[啊呀呀！!。.～~,，\s]*$`),
		regexp.MustCompile(`(?i)^\s*(谢谢|多谢|感谢|哈+|再见|拜拜|thanks)[啊呀了！!。.～~,，\s]*$`),
		regexp.MustCompile(`^\s*(什么是|什么叫|啥是|何为)[^，,。；;]{1,8}[？?]?\s*$`),
		regexp.MustCompile(`^\s*[^，,。；;]{1,8}(是什么|是啥|什么意思|指的是什么)[？?吗呢啊]*\s*$`),
	}

	// 对上一轮提问的肯定答复，只用于确认已挂起的分析。
	affirmationPattern = regexp.MustCompile(`(?i)^\s*(?:(?:好的|好|可以|行|是的|对|嗯+|开始|确认|分析吧|ok|okay|yes)[啊呀了吧！!。.～~,，\s]*)+$`)

	// 分析意图的常见说法。
	intentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(帮我|帮忙|请|给我|麻烦|想要|想|能不能|可以).{0,8}(分析|看看|看一下|看下|算|测|排|解读|推算|批)`),
		regexp.MustCompile(`(分析|测算|推算|排盘|解读)`),
		regexp.MustCompile(`(怎么样|如何|好不好|吉凶|好吗)`),
		regexp.MustCompile(`(?i)(analy[sz]e|reading|fortune|chart)`),
	}

	// 四柱干支组合，如“甲子”。
	pillarPattern = regexp.MustCompile(`[甲乙丙丁戊己庚辛壬癸][子丑寅卯辰巳午未申酉戌亥]`)

	// 日期与时间。
	fullDatePattern    = regexp.MustCompile(`(\d{4})\s*[年\-/.]\s*(\d{1,2})\s*[月\-/.]\s*(\d{1,2})\s*[日号]?`)
	chineseDatePattern = regexp.MustCompile(`([一二三四五六七八九〇零]{4})年([一二三四五六七八九十正冬腊]{1,2})月([一二三四五六七八九十廿初]{1,3})[日号]?`)
	yearMonthPattern   = regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月`)
	clockPattern       = regexp.MustCompile(`(凌晨|早上|上午|中午|下午|傍晚|晚上|夜里)?\s*(\d{1,2})\s*[点时:：]\s*(?:(\d{1,2})\s*分?)?`)
	shichenPattern     = regexp.MustCompile(`([子丑寅卯辰巳午未申酉戌亥])时`)

	// 性别。
	malePattern   = regexp.MustCompile(`男性|男生|男士|男孩|乾造|先生|性别[：:\s]*男|我是男|(?:^|[\s，,。、；;：:我])男的?(?:$|[\s，,。、；;！!啊呀哦])|(?i:\bmale\b)`)
	femalePattern = regexp.MustCompile(`女性|女生|女士|女孩|坤造|性别[：:\s]*女|我是女|(?:^|[\s，,。、；;：:我])女的?(?:$|[\s，,。、；;！!啊呀哦])|(?i:\bfemale\b)`)

	// 出生地，仅在出现出生词汇时提取。
	birthPlacePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:出生|生)(?:在|于)(\p{Han}{2,6}?)(?:[市省县区]|[\s，,。！!的]|$)`),
		regexp.MustCompile(`在(\p{Han}{2,6}?)(?:市|省)?出生`),
	}

	// 房屋朝向，仅在未出现出生词汇（或明确提到房屋）时提取。
	sittingFacingPattern = regexp.MustCompile(`坐([东南西北]{1,2})朝([东南西北]{1,2})`)
	facingPattern        = regexp.MustCompile(`朝([东南西北]{1,2})`)
	facingSuffixPattern  = regexp.MustCompile(`([东南西北]{1,2})向`)
	degreePattern        = regexp.MustCompile(`(\d{1,3})\s*(?:度|°)`)

	// 户型布局描述，总是视为房屋信息。
	layoutPattern = regexp.MustCompile(`户型|布局|格局|平面图|房型|[一二三四五六七八九两\d]室[一二三四五六七八九两\d]?厅`)
)
