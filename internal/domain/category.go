package domain

// categoryAliases сопоставляет основную категорию с написаниями, которые встречаются у магазинов.
var categoryAliases = map[string][]string{
	"T-skjorte": {"Tshirt", "Tshirtstanks", "Tskjorte", "Tee", "Top"},
	"Bukse":     {"Bukser", "Bukse", "Trousers", "Trouser", "Pants", "Sweatpants"},
	"Jakke":     {"Jacket", "Jakker", "Jakke", "Jacketscoats", "Coat", "Jacker"},
	"Genser":    {"Sweater", "Genser", "Gensere", "Cardigan"},
	"Skjorte":   {"Skjorte", "Shirt", "Shirts", "Sleeve"},
	"Shorts":    {"Shorts"},
	"Jeans":     {"Jeans"},
	"Blazer":    {"Blazer", "Blazerssuits"},
	"Hoodie":    {"Hoodie", "Hoodiessweatshirts"},
}

// CategoryAliases возвращает написания категории для поиска по подстроке.
// Неизвестная категория ищется как есть.
func CategoryAliases(category string) []string {
	if aliases, ok := categoryAliases[category]; ok {
		out := make([]string, len(aliases))
		copy(out, aliases)
		return out
	}

	return []string{category}
}

// LikePatterns превращает написания в шаблоны LIKE "%alias%". Спецсимволы LIKE экранируются обратным слэшем.
func LikePatterns(aliases []string) []string {
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		out = append(out, "%"+escapeLike(a)+"%")
	}

	return out
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}

	return string(out)
}
