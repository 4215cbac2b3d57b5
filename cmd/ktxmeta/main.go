// Command ktxmeta inspects KTX2 containers and patches the pc.meta
// analysis record into an encoder's output file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"pc-texprep/internal/histogram"
	"pc-texprep/internal/ktx2"
	"pc-texprep/internal/meta"
)

func main() {
	file := flag.String("file", "", "Path to the .ktx2 container")
	sidecar := flag.String("sidecar", "", "Histogram sidecar JSON to patch in as pc.meta")
	quant := flag.String("quant", "half", "Metadata quantization: half, float, packed")
	verify := flag.Bool("verify", false, "Verify level index integrity (decompresses zstd levels)")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: ktxmeta -file texture.ktx2 [-sidecar texture.hist.json] [-verify]")
		os.Exit(1)
	}

	if *sidecar != "" {
		if err := patch(*file, *sidecar, *quant); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := inspect(*file, *verify); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func patch(path, sidecarPath, quant string) error {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return fmt.Errorf("read sidecar: %w", err)
	}
	var res histogram.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("parse sidecar: %w", err)
	}

	var q meta.Quantization
	switch quant {
	case "half":
		q = meta.QuantHalf16
	case "float":
		q = meta.QuantFloat32
	case "packed":
		q = meta.QuantPackedUint32
	default:
		return fmt.Errorf("unknown quantization %q", quant)
	}

	w := meta.NewWriter(log.New(os.Stderr, "", 0))
	if err := w.AddHistogram(res, q); err != nil {
		return err
	}

	if err := ktx2.AddKeyValueData(path, meta.Key, w.Bytes(), log.New(os.Stdout, "", 0)); err != nil {
		return err
	}
	fmt.Printf("Patched %s into %s\n", meta.Key, path)
	return nil
}

func inspect(path string, verify bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := ktx2.Parse(data)
	if err != nil {
		return err
	}

	h := f.Header
	fmt.Printf("%s: vkFormat=%d %dx%d levels=%d supercompression=%d\n",
		path, h.VkFormat, h.PixelWidth, h.PixelHeight, h.LevelCount, h.SupercompressionScheme)
	fmt.Printf("  DFD @%d (%d bytes), KVD @%d (%d bytes), SGD @%d (%d bytes)\n",
		h.DFDByteOffset, h.DFDByteLength, h.KVDByteOffset, h.KVDByteLength,
		h.SGDByteOffset, h.SGDByteLength)
	for i, lv := range f.Levels {
		fmt.Printf("  level %d: @%d, %d bytes (%d uncompressed)\n",
			i, lv.ByteOffset, lv.ByteLength, lv.UncompressedByteLength)
	}

	kvs, err := f.KeyValues()
	if err != nil {
		return err
	}
	for k, v := range kvs {
		fmt.Printf("  key %q: %d bytes\n", k, len(v))
		if k != meta.Key {
			continue
		}
		recs, err := meta.Parse(v)
		if err != nil {
			fmt.Printf("    (unparseable: %v)\n", err)
			continue
		}
		for _, r := range recs {
			switch r.Type {
			case meta.RecordHistScalar, meta.RecordHistPerChannel3, meta.RecordHistPerChannel4:
				t, err := meta.DecodeHistogram(r)
				if err != nil {
					fmt.Printf("    hist record: %v\n", err)
					continue
				}
				fmt.Printf("    hist: scale=%v offset=%v\n", t.Scale, t.Offset)
			case meta.RecordHistParams:
				p, err := meta.DecodeHistParams(r)
				if err == nil {
					fmt.Printf("    params: low=%.2f high=%.2f knee=%.2f\n",
						p.PercentileLow, p.PercentileHigh, p.KneeWidth)
				}
			default:
				fmt.Printf("    record type=%d flags=%#02x payload=%d bytes\n",
					r.Type, r.Flags, len(r.Payload))
			}
		}
	}

	if verify {
		if err := f.VerifyLevels(); err != nil {
			return err
		}
		fmt.Println("  level index OK")
	}
	return nil
}
