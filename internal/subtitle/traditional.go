package subtitle

import "strings"

// simplifiedToTraditional is a character lexicon covering the vocabulary that
// appears in generated narration. Characters outside the lexicon pass through
// unchanged, which is correct for the large shared subset of the two scripts.
var simplifiedToTraditional = map[rune]rune{
	'国': '國', '说': '說', '话': '話', '读': '讀', '写': '寫',
	'书': '書', '学': '學', '习': '習', '听': '聽', '视': '視',
	'频': '頻', '电': '電', '脑': '腦', '机': '機', '时': '時',
	'间': '間', '东': '東', '问': '問', '题': '題', '经': '經',
	'济': '濟', '发': '發', '历': '歷', '万': '萬', '亿': '億',
	'数': '數', '据': '據', '环': '環', '气': '氣', '体': '體',
	'运': '運', '动': '動', '车': '車', '马': '馬', '鸟': '鳥',
	'鱼': '魚', '龙': '龍', '风': '風', '云': '雲', '门': '門',
	'开': '開', '关': '關', '长': '長', '岁': '歲', '边': '邊',
	'远': '遠', '进': '進', '过': '過', '还': '還', '这': '這',
	'里': '裡', '后': '後', '头': '頭', '买': '買', '卖': '賣',
	'钱': '錢', '银': '銀', '铁': '鐵', '医': '醫', '药': '藥',
	'农': '農', '业': '業', '产': '產', '厂': '廠', '广': '廣',
	'场': '場', '师': '師', '员': '員', '会': '會', '议': '議',
	'论': '論', '语': '語', '词': '詞', '汉': '漢', '对': '對',
	'双': '雙', '难': '難', '鸡': '雞', '热': '熱', '点': '點',
	'灯': '燈', '当': '當', '党': '黨', '众': '眾', '优': '優',
	'伤': '傷', '价': '價', '亲': '親', '儿': '兒', '两': '兩',
	'义': '義', '乐': '樂', '乡': '鄉', '为': '為', '丽': '麗',
	'举': '舉', '争': '爭', '单': '單', '严': '嚴', '个': '個',
	'从': '從', '余': '餘', '来': '來', '侧': '側', '们': '們',
	'传': '傳', '伟': '偉', '华': '華', '协': '協', '区': '區',
	'压': '壓', '厅': '廳', '变': '變', '号': '號', '叶': '葉',
	'响': '響', '园': '園', '围': '圍', '图': '圖', '团': '團',
	'报': '報', '声': '聲', '复': '復', '够': '夠', '备': '備',
	'实': '實', '宝': '寶', '将': '將', '专': '專', '导': '導',
	'层': '層', '属': '屬', '岛': '島', '带': '帶', '帮': '幫',
	'应': '應', '总': '總', '恶': '惡', '爱': '愛', '战': '戰',
	'击': '擊', '担': '擔', '挤': '擠', '无': '無', '旧': '舊',
	'显': '顯', '晓': '曉', '术': '術', '权': '權', '条': '條',
	'构': '構', '标': '標', '样': '樣', '检': '檢', '极': '極',
	'楼': '樓', '欢': '歡', '灵': '靈', '现': '現', '础': '礎',
	'种': '種', '积': '積', '级': '級', '红': '紅', '纪': '紀',
	'约': '約', '线': '線', '组': '組', '细': '細', '结': '結',
	'给': '給', '统': '統', '继': '繼', '维': '維', '绿': '綠',
	'网': '網', '罗': '羅', '职': '職', '联': '聯', '节': '節',
	'获': '獲', '营': '營', '见': '見', '观': '觀', '规': '規',
	'览': '覽', '觉': '覺', '计': '計', '让': '讓', '记': '記',
	'设': '設', '访': '訪', '证': '證', '识': '識', '诉': '訴',
	'试': '試', '诗': '詩', '调': '調', '谈': '談', '请': '請',
	'贝': '貝', '负': '負', '贵': '貴', '费': '費', '资': '資',
	'质': '質', '转': '轉', '轻': '輕', '办': '辦', '连': '連',
	'选': '選', '递': '遞', '邮': '郵', '释': '釋', '钟': '鐘',
	'镇': '鎮', '闻': '聞', '阳': '陽', '阶': '階', '际': '際',
	'随': '隨', '隐': '隱', '页': '頁', '顶': '頂',
	'项': '項', '须': '須', '顾': '顧', '飞': '飛', '饭': '飯',
	'馆': '館', '驾': '駕', '验': '驗', '骨': '骨', '鲜': '鮮',
}

// ToTraditional converts simplified Chinese text to traditional characters
// using the lexicon. Non-Chinese text is returned unchanged.
func ToTraditional(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if t, ok := simplifiedToTraditional[r]; ok {
			sb.WriteRune(t)
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
