package commands

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zoobzio/sealed"
)

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt each stdin line, writing base64 ciphertext lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLines(cmd, sealed.SideEncrypt)
		},
	}
}

func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt each base64 stdin line, writing plaintext lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLines(cmd, sealed.SideDecrypt)
		},
	}
}

func modesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List supported cipher modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, m := range []sealed.Mode{sealed.ModeCBC, sealed.ModeGCM, sealed.ModeChaCha20Poly1305} {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

// runLines pushes every input line through the accessors of a single
// session. Empty lines are copied through.
func runLines(cmd *cobra.Command, side sealed.Side) (err error) {
	alg, err := newAlgorithm()
	if err != nil {
		return err
	}

	ctx, sess, err := sealed.Open(cmd.Context(), alg)
	if err != nil {
		_ = alg.Close()
		return err
	}
	defer func() {
		err = errors.Join(err, sess.Close())
	}()

	if err := transformLines(ctx, side, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return err
	}

	if showStats {
		st := sess.Stats()
		fmt.Fprintf(cmd.ErrOrStderr(), "encrypt: created=%d evicted=%d decrypt: created=%d evicted=%d\n",
			st.EncryptCreated, st.EncryptEvicted, st.DecryptCreated, st.DecryptEvicted)
	}
	return nil
}

func transformLines(ctx context.Context, side sealed.Side, in io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for n := 1; sc.Scan(); n++ {
		line := sc.Bytes()
		if len(line) == 0 {
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
			continue
		}

		src := line
		if side == sealed.SideDecrypt {
			decoded, err := base64.StdEncoding.DecodeString(string(line))
			if err != nil {
				return fmt.Errorf("line %d: base64 decode: %w", n, err)
			}
			src = decoded
		}

		res, err := sealed.Apply(ctx, side, src)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}

		if side == sealed.SideEncrypt {
			_, err = w.WriteString(base64.StdEncoding.EncodeToString(res))
		} else {
			_, err = w.Write(res)
		}
		if err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return w.Flush()
}
