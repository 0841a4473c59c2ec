package restructure

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/John-Robertt/ksm/internal/domain"
)

// RemoveKeyUnmodifiedFiles 删除 root 下内容与原版一致（sha1 相同）的关键文件。
// 主机版自带这些文件，留着原版副本只会覆盖掉主机版的同名文件。
func RemoveKeyUnmodifiedFiles(root string, hashes map[string]string) (domain.Counts, error) {
	var c domain.Counts

	names := make([]string, 0, len(hashes))
	for n := range hashes {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		p, ok, err := lookupCI(root, name)
		if err != nil {
			return c, errors.Wrapf(err, "查找 %q", name)
		}
		if !ok {
			continue
		}
		c.Found++

		sum, err := sha1File(p)
		if err != nil {
			return c, errors.Wrapf(err, "计算 %q 的 sha1", name)
		}
		if sum != hashes[name] {
			c.Skipped++
			continue
		}
		if err := os.Remove(p); err != nil {
			return c, errors.Wrapf(err, "删除 %q", name)
		}
		c.Removed++
	}
	return c, nil
}

func sha1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
