package sales

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"dashboard-ventas/internal/canon"
)

// 表头别名：规范化后的表头名 -> 记录字段；金额与数量按出现顺序取第一个非空列
var headerFields = map[string]string{
	"ciudad":         FieldCiudad,
	"municipio":      FieldCiudad,
	"departamento":   FieldDepartamento,
	"macrocategoria": FieldMacrocategoria,
	"categoria":      FieldCategoria,
	"subcategoria":   FieldSubcategoria,
	"segmento":       FieldSegmento,
	"marca":          FieldMarca,
	"fecha":          "fecha",
	"shapeid":        "shapeid",
	"shape_id":       "shapeid",
}

var amountHeaders = []string{"total", "valor_total", "valor"}
var quantityHeaders = []string{"cantidad", "unidades"}

// CSVFile：从 CSV 文件流式读取记录
type CSVFile struct {
	Path string
}

func (c CSVFile) Each(ctx context.Context, fn func(Record) error) error {
	f, err := os.Open(c.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Path, err)
	}
	defer f.Close()
	return ReadCSV(ctx, f, fn)
}

func normHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ReplaceAll(canon.Base(h), " ", "_")
}

type columns struct {
	fields   map[string]int
	amount   []int
	quantity []int
}

func indexColumns(header []string) columns {
	cols := columns{fields: map[string]int{}}
	pos := map[string]int{}
	for i, h := range header {
		n := normHeader(h)
		if _, dup := pos[n]; !dup {
			pos[n] = i
		}
	}
	for name, i := range pos {
		if f, ok := headerFields[name]; ok {
			if _, set := cols.fields[f]; !set || name == f {
				cols.fields[f] = i
			}
		}
	}
	for _, n := range amountHeaders {
		if i, ok := pos[n]; ok {
			cols.amount = append(cols.amount, i)
		}
	}
	for _, n := range quantityHeaders {
		if i, ok := pos[n]; ok {
			cols.quantity = append(cols.quantity, i)
		}
	}
	return cols
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func firstNonEmpty(row []string, idx []int) string {
	for _, i := range idx {
		if v := cell(row, i); v != "" {
			return v
		}
	}
	return ""
}

func (c columns) record(row []string) Record {
	get := func(f string) string {
		i, ok := c.fields[f]
		if !ok {
			return ""
		}
		return cell(row, i)
	}
	return Record{
		Ciudad:         get(FieldCiudad),
		Departamento:   get(FieldDepartamento),
		Macrocategoria: get(FieldMacrocategoria),
		Categoria:      get(FieldCategoria),
		Subcategoria:   get(FieldSubcategoria),
		Segmento:       get(FieldSegmento),
		Marca:          get(FieldMarca),
		Fecha:          get("fecha"),
		ShapeID:        get("shapeid"),
		Total:          firstNonEmpty(row, c.amount),
		Cantidad:       firstNonEmpty(row, c.quantity),
	}
}

// ReadCSV：解析带表头的 CSV；分隔符按表头行自动识别（',' 或 ';'）
// 约束：列数不齐的行照常读取，缺失列视为空
func ReadCSV(ctx context.Context, r io.Reader, fn func(Record) error) error {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return err
	}
	line := string(first)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if strings.Count(line, ";") > strings.Count(line, ",") {
		cr.Comma = ';'
	}
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	n := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", n+2, err)
		}
		n++
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(cols.record(row)); err != nil {
			return err
		}
	}
}
