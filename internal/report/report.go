// Package report собирает xlsx-отчёт по снимку зеркала каталога.
//
// Отчёт состоит из трёх листов: сводка по годам и статусам, детальный
// список деревьев с питомником и локацией, список питомников по локациям.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/thientangreen/mirror-module/internal/domain/model"
	"github.com/thientangreen/mirror-module/internal/views"
)

// Названия листов отчёта.
const (
	SheetYearly    = "Thống kê theo năm"
	SheetDetailed  = "Chi tiết SP theo Nhà máy-ĐL"
	SheetLocations = "Nhà máy theo Địa điểm"
)

const notAvailable = "N/A"

// Filename возвращает имя файла отчёта для даты формирования.
func Filename(now time.Time) string {
	return fmt.Sprintf("Thong_ke_san_pham_%s.xlsx", now.Format("2006-01-02"))
}

// Build формирует книгу отчёта по снимку зеркала и возвращает её
// содержимое. Снимки передаются списками, как их отдаёт зеркало.
// Паника при формировании книги преобразуется в ошибку: отчёт не
// должен ронять процесс.
func Build(products []model.Product, factories []model.Factory, locations []model.Location) (buf *bytes.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("формирование книги: %v", r)
		}
	}()

	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("стили отчёта: %w", err)
	}

	if err := buildYearlySheet(f, st, products); err != nil {
		return nil, fmt.Errorf("лист %q: %w", SheetYearly, err)
	}
	if err := buildDetailedSheet(f, st, products, factories, locations); err != nil {
		return nil, fmt.Errorf("лист %q: %w", SheetDetailed, err)
	}
	if err := buildLocationsSheet(f, st, factories, locations); err != nil {
		return nil, fmt.Errorf("лист %q: %w", SheetLocations, err)
	}

	idx, err := f.GetSheetIndex(SheetYearly)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	buf, err = f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("запись книги: %w", err)
	}
	return buf, nil
}

// styles — идентификаторы стилей книги.
type styles struct {
	title  int // заголовок листа: жирный 16, заливка D3EAFD
	header int // шапка таблицы: жирный белый на 4A90E2
	cell   int // ячейка данных: тонкая рамка, по центру
	cellL  int // ячейка данных, выравнивание влево
}

func thinBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "top", Style: 1},
		{Type: "bottom", Style: 1},
		{Type: "left", Style: 1},
		{Type: "right", Style: 1},
	}
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	st.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16, Color: "000000"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D3EAFD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return st, err
	}

	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4A90E2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorders(),
	})
	if err != nil {
		return st, err
	}

	st.cell, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return st, err
	}

	st.cellL, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		Border:    thinBorders(),
	})
	return st, err
}

// Лист 1: матрица год × статус. Колонки статусов идут в порядке
// общей разбивки (по убыванию количества), колонка "Tổng" не
// учитывает погибшие деревья.
func buildYearlySheet(f *excelize.File, st styles, products []model.Product) error {
	// Книга создаётся с единственным листом по умолчанию
	if err := f.SetSheetName("Sheet1", SheetYearly); err != nil {
		return err
	}

	breakdown := views.StatusBreakdown(products)
	statuses := make([]string, 0, len(breakdown))
	for _, sc := range breakdown {
		statuses = append(statuses, sc.Status)
	}

	headers := []any{"Năm", "Tổng"}
	for _, s := range statuses {
		headers = append(headers, s)
	}
	if err := f.SetSheetRow(SheetYearly, "A1", &headers); err != nil {
		return err
	}

	// Счётчики статусов по годам
	perYear := map[int]map[string]int{}
	for _, p := range products {
		y := p.YearValue()
		if y == 0 {
			continue
		}
		if perYear[y] == nil {
			perYear[y] = map[string]int{}
		}
		perYear[y][views.NormalizeStatus(p.StatusValue())]++
	}

	yearly := views.YearlyBreakdown(products)
	for i, entry := range yearly {
		row := []any{entry.Year, entry.Total}
		for _, s := range statuses {
			row = append(row, perYear[entry.Year][s])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetYearly, cell, &row); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(SheetYearly, "A", "B", 12); err != nil {
		return err
	}
	if len(statuses) > 0 {
		firstStatusCol, err := excelize.ColumnNumberToName(3)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetYearly, firstStatusCol, lastCol, 18); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetYearly, "A1", lastCol+"1", st.header); err != nil {
		return err
	}
	if len(yearly) > 0 {
		return f.SetCellStyle(SheetYearly, "A2", fmt.Sprintf("%s%d", lastCol, len(yearly)+1), st.cell)
	}
	return nil
}

// Лист 2: детальный список деревьев. Локация определяется через
// питомник; для отсутствующих связей — подписи-заглушки.
func buildDetailedSheet(f *excelize.File, st styles, products []model.Product, factories []model.Factory, locations []model.Location) error {
	if _, err := f.NewSheet(SheetDetailed); err != nil {
		return err
	}

	factoryName := make(map[string]string, len(factories))
	factoryLocation := make(map[string]string, len(factories))
	for _, fac := range factories {
		factoryName[fac.FactoryID] = fac.NameValue()
		factoryLocation[fac.FactoryID] = fac.LocationID
	}
	locationName := make(map[string]string, len(locations))
	for _, loc := range locations {
		locationName[loc.LocationID] = loc.NameValue()
	}

	if err := f.SetCellValue(SheetDetailed, "A1", "BÁO CÁO CHI TIẾT SẢN PHẨM"); err != nil {
		return err
	}
	headers := []any{"Nhà máy", "Địa điểm", "Tên cây", "Năm", "Trạng thái"}
	if err := f.SetSheetRow(SheetDetailed, "A3", &headers); err != nil {
		return err
	}

	for i, p := range products {
		fName := p.NameFactory
		if fName == "" {
			fName = factoryName[p.FactoryID]
		}
		if fName == "" {
			fName = views.UnknownFactoryName
		}
		lName := locationName[factoryLocation[p.FactoryID]]
		if lName == "" {
			lName = views.UnknownFactoryName
		}
		yearCell := any(notAvailable)
		if y := p.YearValue(); y != 0 {
			yearCell = y
		}
		status := p.StatusValue()
		if status == "" {
			status = notAvailable
		}

		row := []any{fName, lName, p.TitleValue(), yearCell, status}
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetDetailed, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetDetailed, "A", "B", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetDetailed, "C", "C", 36); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetDetailed, "D", "E", 14); err != nil {
		return err
	}
	if err := f.SetRowHeight(SheetDetailed, 1, 30); err != nil {
		return err
	}
	if err := f.MergeCell(SheetDetailed, "A1", "E1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetDetailed, "A1", "A1", st.title); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetDetailed, "A3", "E3", st.header); err != nil {
		return err
	}
	if len(products) > 0 {
		last := len(products) + 3
		if err := f.SetCellStyle(SheetDetailed, "A4", fmt.Sprintf("C%d", last), st.cellL); err != nil {
			return err
		}
		return f.SetCellStyle(SheetDetailed, "D4", fmt.Sprintf("E%d", last), st.cell)
	}
	return nil
}

// Лист 3: питомники, сгруппированные по локациям. Локации без
// питомников в отчёт не попадают.
func buildLocationsSheet(f *excelize.File, st styles, factories []model.Factory, locations []model.Location) error {
	if _, err := f.NewSheet(SheetLocations); err != nil {
		return err
	}

	if err := f.SetCellValue(SheetLocations, "A1", "DANH SÁCH NHÀ MÁY THEO ĐỊA ĐIỂM"); err != nil {
		return err
	}
	headers := []any{"Địa điểm", "Nhà máy"}
	if err := f.SetSheetRow(SheetLocations, "A3", &headers); err != nil {
		return err
	}

	rows := 0
	for _, group := range views.FactoriesByLocation(factories, locations) {
		if group.Factories == "" {
			continue
		}
		row := []any{group.Name, group.Factories}
		cell, err := excelize.CoordinatesToCellName(1, rows+4)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetLocations, cell, &row); err != nil {
			return err
		}
		rows++
	}

	if err := f.SetColWidth(SheetLocations, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetLocations, "B", "B", 44); err != nil {
		return err
	}
	if err := f.SetRowHeight(SheetLocations, 1, 30); err != nil {
		return err
	}
	if err := f.MergeCell(SheetLocations, "A1", "B1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetLocations, "A1", "A1", st.title); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetLocations, "A3", "B3", st.header); err != nil {
		return err
	}
	if rows > 0 {
		return f.SetCellStyle(SheetLocations, "A4", fmt.Sprintf("B%d", rows+3), st.cellL)
	}
	return nil
}
