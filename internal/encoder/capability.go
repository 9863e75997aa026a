package encoder

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/smazurov/tracknode/internal/ffmpeg"
)

var (
	encoderRegex = regexp.MustCompile(`^\s*([A-Z.]{6})\s+(\S+)\s+(.+)$`)
	familyRegex  = regexp.MustCompile(`\(codec (\w+)\)`)
	hwaccelRegex = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|videotoolbox|v4l2m2m|rkmpp|vdpau|cuda|omx|mediacodec)`)
)

// FFmpegInstalled checks if ffmpeg is installed and available.
func FFmpegInstalled() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// ListVideoCodecs returns every video encoder the local ffmpeg offers.
func ListVideoCodecs(ctx context.Context) ([]Codec, error) {
	if !FFmpegInstalled() {
		return nil, fmt.Errorf("ffmpeg is not installed or not in PATH")
	}

	args := ffmpeg.EncodersListArgs()
	output, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to execute encoders command: %w", err)
	}
	return parseEncoderOutput(string(output))
}

// parseEncoderOutput processes the output of ffmpeg -encoders, keeping
// video encoders only.
func parseEncoderOutput(output string) ([]Codec, error) {
	codecs := []Codec{}
	scanner := bufio.NewScanner(strings.NewReader(output))

	// The legend above "------" uses the same column layout.
	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.HasPrefix(strings.TrimSpace(line), "------") {
				started = true
			}
			continue
		}

		matches := encoderRegex.FindStringSubmatch(line)
		if len(matches) != 4 || matches[1][0] != 'V' {
			continue
		}

		name, description := matches[2], strings.TrimSpace(matches[3])
		family := name
		if m := familyRegex.FindStringSubmatch(description); m != nil {
			family = m[1]
		}
		codecs = append(codecs, Codec{
			Name:        name,
			Family:      family,
			Description: description,
			HWAccel:     hwaccelRegex.MatchString(name) || hwaccelRegex.MatchString(description),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading output: %w", err)
	}
	return codecs, nil
}

// selectCodec picks the codec for want from available. An exact encoder
// name wins; otherwise the first preferred encoder of that family, then any
// encoder of that family.
func selectCodec(want string, available []Codec, preferred []string) (Codec, error) {
	for _, c := range available {
		if c.Name == want {
			return c, nil
		}
	}
	for _, name := range preferred {
		for _, c := range available {
			if c.Name == name && c.Family == want {
				return c, nil
			}
		}
	}
	for _, c := range available {
		if c.Family == want {
			return c, nil
		}
	}
	return Codec{}, fmt.Errorf("%w: %s", ErrNotFound, want)
}
