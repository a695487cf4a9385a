package views

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/thientangreen/mirror-module/internal/domain/model"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func year(y int) *time.Time {
	t := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

// tree собирает запись дерева для тестов.
func tree(id, title, status string, y int, factoryID string) model.Product {
	p := model.Product{
		ProductID: id,
		Title:     strPtr(title),
		Status:    strPtr(status),
		FactoryID: factoryID,
	}
	if y != 0 {
		p.Year = year(y)
	}
	return p
}

func factory(id, name, locationID string) model.Factory {
	return model.Factory{FactoryID: id, NameFactory: strPtr(name), LocationID: locationID}
}

func TestGroupName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Cây Dầu - A", "cây dầu"},
		{"Cây Sao-B", "cây sao"},
		{"  Cây Me  - C", "cây me"},
		{"Без дефиса", "без дефиса"},
		{"", ""},
		{"- только хвост", ""},
	}

	for _, tt := range tests {
		if got := GroupName(tt.title); got != tt.want {
			t.Errorf("GroupName(%q) = %q, ожидается %q", tt.title, got, tt.want)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tốt", "tốt"},
		{"  Chết  ", "chết"},
		{"", DefaultStatus},
		{"   ", DefaultStatus},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.in); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, ожидается %q", tt.in, got, tt.want)
		}
	}
}

// Сценарий: одна запись "Cây Dầu - A"/"Tốt", фильтр по статусу.
func TestFilteredList_StatusScenario(t *testing.T) {
	products := []model.Product{tree("1", "Cây Dầu - A", "Tốt", 2023, "")}

	got := FilteredList(products, nil, model.FilterCriteria{Status: "Tốt"})
	if len(got) != 1 {
		t.Errorf("фильтр Tốt: получено %d записей, ожидается 1", len(got))
	}

	got = FilteredList(products, nil, model.FilterCriteria{Status: "Chết"})
	if len(got) != 0 {
		t.Errorf("фильтр Chết: получено %d записей, ожидается 0", len(got))
	}
}

func TestFilteredList_AllCriteria(t *testing.T) {
	products := []model.Product{
		func() model.Product {
			p := tree("1", "Cây Dầu - A", "Tốt", 2023, "f1")
			p.Image = strPtr("a.jpg")
			return p
		}(),
		func() model.Product {
			p := tree("2", "Cây Dầu - B", "Tốt", 2023, "f2")
			p.Video = strPtr("b.mp4")
			return p
		}(),
		tree("3", "Cây Sao - C", "Xấu", 2022, "f1"),
	}
	factories := []model.Factory{
		factory("f1", "Vườn 1", "l1"),
		factory("f2", "Vườn 2", "l2"),
	}

	tests := []struct {
		name     string
		criteria model.FilterCriteria
		wantIDs  []string
	}{
		{"без критериев", model.FilterCriteria{}, []string{"1", "2", "3"}},
		{"год", model.FilterCriteria{Year: 2023}, []string{"1", "2"}},
		{"группа", model.FilterCriteria{Type: "cây sao"}, []string{"3"}},
		{"группа с регистром и пробелами", model.FilterCriteria{Type: " Cây Dầu "}, []string{"1", "2"}},
		{"только фото", model.FilterCriteria{Media: model.MediaImageOnly}, []string{"1"}},
		{"только видео", model.FilterCriteria{Media: model.MediaVideoOnly}, []string{"2"}},
		{"любое медиа", model.FilterCriteria{Media: model.MediaAll}, []string{"1", "2"}},
		{"статус", model.FilterCriteria{Status: "Xấu"}, []string{"3"}},
		{"питомник", model.FilterCriteria{FactoryID: "f1"}, []string{"1", "3"}},
		{"локация", model.FilterCriteria{LocationID: "l2"}, []string{"2"}},
		{"сочетание", model.FilterCriteria{Year: 2023, Media: model.MediaImageOnly, FactoryID: "f1"}, []string{"1"}},
		{"несовместимое сочетание", model.FilterCriteria{Year: 2022, Media: model.MediaImageOnly}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilteredList(products, factories, tt.criteria)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ProductID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("получено %v, ожидается %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Fatalf("получено %v, ожидается %v", ids, tt.wantIDs)
				}
			}
		})
	}
}

// Свойство: результат фильтрации — подмножество входа, каждая запись
// удовлетворяет предикату, порядок сохраняется.
func TestFilteredList_SubsetProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []string{"Tốt", "Xấu", "Chết", ""}
	titles := []string{"Cây Dầu - A", "Cây Sao - B", "Cây Me - C"}

	products := make([]model.Product, 200)
	for i := range products {
		p := model.Product{
			ProductID: string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Title:     strPtr(titles[rng.Intn(len(titles))]),
			Status:    strPtr(statuses[rng.Intn(len(statuses))]),
			FactoryID: []string{"f1", "f2", ""}[rng.Intn(3)],
		}
		if rng.Intn(4) > 0 {
			p.Year = year(2020 + rng.Intn(5))
		}
		if rng.Intn(2) == 0 {
			p.Image = strPtr("img.jpg")
		}
		products[i] = p
	}

	criteria := model.FilterCriteria{Year: 2023, Media: model.MediaImageOnly, Status: "Tốt"}
	got := FilteredList(products, nil, criteria)

	if len(got) > len(products) {
		t.Fatal("результат больше входа")
	}
	for _, p := range got {
		if p.YearValue() != 2023 || p.ImageValue() == "" || p.StatusValue() != "Tốt" {
			t.Errorf("запись %s не удовлетворяет критериям: %+v", p.ProductID, p)
		}
	}
}

func TestGallery(t *testing.T) {
	products := []model.Product{
		tree("1", "Cây Dầu - A", "Tốt", 2020, ""),
		{ProductID: "2", Title: strPtr(""), Status: strPtr("Tốt"), Year: year(2024)}, // без заголовка
		tree("3", "Cây Sao - B", "Tốt", 2023, ""),
		{ProductID: "4", Title: strPtr("Cây Me - C"), Status: strPtr("  "), Year: year(2024)}, // пустой статус
		tree("5", "Cây Me - D", "Xấu", 2023, ""),
	}

	got := Gallery(products)
	if len(got) != 3 {
		t.Fatalf("получено %d записей, ожидается 3 (только валидные)", len(got))
	}
	// Год по убыванию, внутри года — порядок каталога
	wantOrder := []string{"3", "5", "1"}
	for i, want := range wantOrder {
		if got[i].ProductID != want {
			t.Errorf("позиция %d: %s, ожидается %s", i, got[i].ProductID, want)
		}
	}
}

func TestStatusBreakdown_PercentSum(t *testing.T) {
	products := []model.Product{
		tree("1", "A", "Tốt", 0, ""),
		tree("2", "B", "Tốt", 0, ""),
		tree("3", "C", "Xấu", 0, ""),
		tree("4", "D", "chết", 0, ""),
		tree("5", "E", " Tốt ", 0, ""),
		tree("6", "F", "", 0, ""),
		tree("7", "G", "Xấu", 0, ""),
	}

	got := StatusBreakdown(products)

	var sum float64
	totalCount := 0
	for _, sc := range got {
		sum += sc.Percent
		totalCount += sc.Count
	}
	if totalCount != len(products) {
		t.Errorf("сумма счётчиков %d, ожидается %d", totalCount, len(products))
	}
	if math.Abs(sum-100) > 0.1 {
		t.Errorf("сумма процентов %.2f, ожидается 100±0.1", sum)
	}

	// "Tốt", " Tốt " — один нормализованный статус
	if got[0].Status != "tốt" || got[0].Count != 3 {
		t.Errorf("первый статус %+v, ожидается tốt×3", got[0])
	}
	// Один знак после запятой
	for _, sc := range got {
		if math.Abs(sc.Percent*10-math.Round(sc.Percent*10)) > 1e-9 {
			t.Errorf("процент %v не округлён до одного знака", sc.Percent)
		}
	}
}

func TestStatusBreakdown_Empty(t *testing.T) {
	if got := StatusBreakdown(nil); len(got) != 0 {
		t.Errorf("пустой вход должен дать пустую разбивку, получено %v", got)
	}
}

func TestYearlyBreakdown(t *testing.T) {
	products := []model.Product{
		tree("1", "Cây Dầu - A", "Tốt", 2023, ""),
		tree("2", "Cây Dầu - B", "Chết", 2023, ""), // исключается из итога 2023
		tree("3", "Cây Sao - C", "Tốt", 2021, ""),
		tree("4", "Cây Sao - D", "Xấu", 2021, ""),
		{ProductID: "5", Title: strPtr("Без даты"), Status: strPtr("Tốt")}, // исключается целиком
		tree("6", "Cây Me - E", "Tốt", 2024, ""),
	}

	got := YearlyBreakdown(products)

	// Годы уникальны и строго убывают
	wantYears := []int{2024, 2023, 2021}
	if len(got) != len(wantYears) {
		t.Fatalf("получено %d годов, ожидается %d", len(got), len(wantYears))
	}
	for i, entry := range got {
		if entry.Year != wantYears[i] {
			t.Errorf("позиция %d: год %d, ожидается %d", i, entry.Year, wantYears[i])
		}
		if i > 0 && got[i-1].Year <= entry.Year {
			t.Error("годы должны строго убывать")
		}
	}

	// Погибшее дерево не входит в итог, но остаётся в детализации
	y2023 := got[1]
	if y2023.Total != 1 {
		t.Errorf("итог 2023 = %d, ожидается 1 (без погибших)", y2023.Total)
	}
	foundDead := false
	for _, d := range y2023.Details {
		if d.Status == DeadStatus {
			foundDead = true
		}
	}
	if !foundDead {
		t.Error("детализация 2023 должна содержать погибшее дерево")
	}
}

func TestYearlyBreakdown_OnlyDeadYear(t *testing.T) {
	products := []model.Product{tree("1", "Cây Dầu - A", "Chết", 2020, "")}

	got := YearlyBreakdown(products)
	if len(got) != 1 || got[0].Year != 2020 || got[0].Total != 0 {
		t.Errorf("год из одних погибших: %+v, ожидается 2020 с итогом 0", got)
	}
}

func TestFactoryStats(t *testing.T) {
	products := []model.Product{
		tree("1", "Cây Dầu - A", "Tốt", 0, "f1"),
		tree("2", "Cây Dầu - A", "Tốt", 0, "f1"),
		tree("3", "Cây Sao - B", "Tốt", 0, "f1"),
		tree("4", "Cây Me - C", "Tốt", 0, "f-missing"),
	}
	factories := []model.Factory{factory("f1", "Vườn 1", "l1")}

	got := FactoryStats(products, factories)
	if len(got) != 2 {
		t.Fatalf("получено %d питомников, ожидается 2", len(got))
	}

	if got[0].FactoryID != "f1" || got[0].Name != "Vườn 1" || got[0].Count != 3 {
		t.Errorf("первый питомник %+v, ожидается Vườn 1×3", got[0])
	}
	if got[0].Items[0].Title != "Cây Dầu - A" || got[0].Items[0].Count != 2 {
		t.Errorf("детализация %+v, ожидается Cây Dầu - A×2 первой", got[0].Items)
	}

	// Отсутствующий в зеркале питомник получает подпись-заглушку
	if got[1].Name != UnknownFactoryName {
		t.Errorf("название неизвестного питомника %q, ожидается %q", got[1].Name, UnknownFactoryName)
	}
}

func TestOptions(t *testing.T) {
	products := []model.Product{
		tree("1", "Cây Dầu - A", "Tốt", 2023, ""),
		tree("2", "Cây Dầu - B", "Xấu", 2021, ""),
		tree("3", "Cây Sao - C", "Tốt", 2024, ""),
	}

	got := Options(products)

	if len(got.Types) != 2 || got.Types[0] != "cây dầu" || got.Types[1] != "cây sao" {
		t.Errorf("Types = %v", got.Types)
	}
	wantYears := []int{2024, 2023, 2021}
	if len(got.Years) != 3 {
		t.Fatalf("Years = %v", got.Years)
	}
	for i, y := range wantYears {
		if got.Years[i] != y {
			t.Errorf("Years = %v, ожидается %v", got.Years, wantYears)
		}
	}
	if len(got.Statuses) != 2 {
		t.Errorf("Statuses = %v", got.Statuses)
	}
}

func TestFactoriesByLocation(t *testing.T) {
	factories := []model.Factory{
		factory("f1", "Vườn 1", "l1"),
		factory("f2", "Vườn 2", "l1"),
		factory("f3", "Vườn 3", "l-missing"),
	}
	locations := []model.Location{
		{LocationID: "l1", NameLocal: strPtr("Đồng Nai")},
		{LocationID: "l2", NameLocal: strPtr("Bình Dương")},
	}

	got := FactoriesByLocation(factories, locations)
	if len(got) != 3 {
		t.Fatalf("получено %d групп, ожидается 3", len(got))
	}
	if got[0].Name != "Đồng Nai" || got[0].Factories != "Vườn 1, Vườn 2" {
		t.Errorf("группа Đồng Nai: %+v", got[0])
	}
	if got[1].Name != "Bình Dương" || got[1].Factories != "" {
		t.Errorf("группа без питомников: %+v", got[1])
	}
	// Питомник с неизвестной локацией — в последней корзине
	if got[2].Name != UnknownLocationName || got[2].Factories != "Vườn 3" {
		t.Errorf("корзина неизвестной локации: %+v", got[2])
	}
}

func TestCacheKey_DistinguishesGenerations(t *testing.T) {
	c := model.FilterCriteria{Status: "Tốt"}
	k1 := Key("filtered", 1, 1, c)
	k2 := Key("filtered", 2, 1, c)
	if k1 == k2 {
		t.Error("ключи разных поколений должны различаться")
	}
	if k1 != Key("filtered", 1, 1, c) {
		t.Error("ключ должен быть детерминированным")
	}
}

// Год записи определяется календарным годом даты, не её началом.
func TestYearValue_MidYearDate(t *testing.T) {
	p := model.Product{Year: timePtr(time.Date(2023, 11, 15, 10, 0, 0, 0, time.UTC))}
	if p.YearValue() != 2023 {
		t.Errorf("YearValue() = %d, ожидается 2023", p.YearValue())
	}
}
