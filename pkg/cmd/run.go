// Copyright Slinky Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slinkylang/slinky/pkg/eval"
	"github.com/slinkylang/slinky/pkg/ir"
	"github.com/slinkylang/slinky/pkg/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <graph.sx> [scalar-arg...] [input-file...]",
	Short: "Build, optimise and evaluate a pipeline graph against concrete buffers.",
	Long: "run builds a debug s-expression graph exactly like build, then evaluates it: leading positional " +
		"arguments (one per scalar arg of the pipeline; the graph file format declares none) are parsed as decimal " +
		"Index values, and one file per formal input buffer follows, in the order of the graph's \"inputs\" list, " +
		"each holding whitespace- or comma-separated " +
		"decimal cell values in dimension-0-fastest order. Every formal output buffer is printed to stdout the " +
		"same way, one line per buffer.",
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)

		root, p, err := loadAndOptimize(cmd, args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "slinky run:", err)
			os.Exit(1)
		}

		if err := runPipeline(cmd.Context(), root, p, args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "slinky run:", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runPipeline materialises the scalar and buffer formal arguments named by
// rest, evaluates root against them, and prints every formal output buffer.
func runPipeline(ctx context.Context, root ir.Stmt, p *pipeline.Pipeline, rest []string) error {
	if len(rest) < len(p.Args)+len(p.Inputs) {
		return fmt.Errorf("expected %d scalar arg(s) and %d input file(s), got %d positional argument(s)",
			len(p.Args), len(p.Inputs), len(rest))
	}

	initial := make(map[ir.SymbolId]eval.Value)

	for i, sym := range p.Args {
		v, err := strconv.ParseInt(rest[i], 10, 64)
		if err != nil {
			return fmt.Errorf("scalar arg %q: %w", p.Ctx.Name(sym), err)
		}

		initial[sym] = eval.ScalarValue(ir.Index(v))
	}

	ec := eval.NewContext()

	rest = rest[len(p.Args):]

	for i, id := range p.Inputs {
		buf := p.Buffer(id)

		dims, size, err := constDims(buf.Dims, buf.ElemSize)
		if err != nil {
			return fmt.Errorf("input buffer %q: %w", buf.Name, err)
		}

		raw, err := readValues(rest[i], size, buf.ElemSize)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rest[i], err)
		}

		initial[buf.Sym] = eval.BufferValue(&ir.Buffer{Base: raw, ElemSize: buf.ElemSize, Dims: dims})
	}

	outputs := make(map[string]*ir.Buffer, len(p.Outputs))

	for _, id := range p.Outputs {
		buf := p.Buffer(id)

		dims, size, err := constDims(buf.Dims, buf.ElemSize)
		if err != nil {
			return fmt.Errorf("output buffer %q: %w", buf.Name, err)
		}

		out := &ir.Buffer{Base: make([]byte, size), ElemSize: buf.ElemSize, Dims: dims}
		initial[buf.Sym] = eval.BufferValue(out)
		outputs[buf.Name] = out
	}

	if code := eval.Evaluate(ctx, root, initial, ec); code != eval.Success {
		return fmt.Errorf("evaluation failed with code %d", code)
	}

	for _, id := range p.Outputs {
		buf := p.Buffer(id)
		fmt.Println(buf.Name+":", formatBuffer(outputs[buf.Name]))
	}

	return nil
}

// constDims resolves a graph-declared Dims list into concrete runtime Dims,
// requiring every bound to be a literal Constant: the CLI loader has no
// scope to evaluate a symbolic bound against, unlike the builder passes.
// Strides follow the §4 convention that dimension 0 varies fastest.
func constDims(dimExprs []ir.DimExpr, elemSize ir.Index) ([]ir.Dim, ir.Index, error) {
	dims := make([]ir.Dim, len(dimExprs))
	stride := elemSize

	for d, de := range dimExprs {
		min, ok := de.Bounds.Min.(*ir.Constant)
		if !ok {
			return nil, 0, fmt.Errorf("dimension %d: min bound is not a literal constant", d)
		}

		max, ok := de.Bounds.Max.(*ir.Constant)
		if !ok {
			return nil, 0, fmt.Errorf("dimension %d: max bound is not a literal constant", d)
		}

		extent := max.Value - min.Value + 1

		var fold ir.Index

		if de.FoldFactor != nil {
			f, ok := de.FoldFactor.(*ir.Constant)
			if !ok {
				return nil, 0, fmt.Errorf("dimension %d: fold factor is not a literal constant", d)
			}

			fold = f.Value
		}

		dims[d] = ir.Dim{Min: min.Value, Extent: extent, Stride: stride, FoldFactor: fold}

		stored := extent
		if fold > 0 && fold < stored {
			stored = fold
		}

		stride *= stored
	}

	return dims, stride, nil
}

// readValues reads whitespace- or comma-separated decimal cell values from
// path and packs them little-endian at elemSize each, returning exactly
// size bytes.
func readValues(path string, size, elemSize ir.Index) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		start := 0
		for start < len(data) && strings.IndexByte(" \t\r\n,", data[start]) >= 0 {
			start++
		}
		for i := start; i < len(data); i++ {
			if strings.IndexByte(" \t\r\n,", data[i]) >= 0 {
				return i + 1, data[start:i], nil
			}
		}
		if atEOF && len(data) > start {
			return len(data), data[start:], nil
		}
		return start, nil, nil
	})
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	out := make([]byte, size)

	count := size / elemSize
	for i := ir.Index(0); i < count; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("expected %d cell value(s), found %d", count, i)
		}

		tok := strings.Trim(scanner.Text(), ",")

		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}

		if err := putIndex(out[i*elemSize:(i+1)*elemSize], v); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func putIndex(dst []byte, v int64) error {
	switch len(dst) {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(dst, uint64(v))
	default:
		return fmt.Errorf("unsupported element size %d", len(dst))
	}

	return nil
}

func readIndexLE(bs []byte) (int64, error) {
	switch len(bs) {
	case 1:
		return int64(int8(bs[0])), nil
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(bs))), nil
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(bs))), nil
	case 8:
		return int64(binary.LittleEndian.Uint64(bs)), nil
	default:
		return 0, fmt.Errorf("unsupported element size %d", len(bs))
	}
}

// formatBuffer prints every cell of buf in dimension-0-fastest order, the
// same layout readValues expects on input.
func formatBuffer(buf *ir.Buffer) string {
	rank := buf.Rank()
	if rank == 0 {
		v, err := readIndexLE(buf.At(nil))
		if err != nil {
			return err.Error()
		}

		return strconv.FormatInt(v, 10)
	}

	coords := make([]ir.Index, rank)
	for d := range coords {
		coords[d] = buf.Dims[d].Min
	}

	var b strings.Builder

	for {
		v, err := readIndexLE(buf.At(coords))
		if err != nil {
			return err.Error()
		}

		if b.Len() > 0 {
			b.WriteByte(',')
		}

		b.WriteString(strconv.FormatInt(v, 10))

		d := 0
		for ; d < rank; d++ {
			coords[d]++
			if coords[d] < buf.Dims[d].Min+buf.Dims[d].Extent {
				break
			}

			coords[d] = buf.Dims[d].Min
		}

		if d == rank {
			break
		}
	}

	return b.String()
}
