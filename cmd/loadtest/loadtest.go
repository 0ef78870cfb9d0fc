// Command loadtest signs up a batch of users against a running server, logs
// them in and has each of them ask the oracle a question.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type result struct {
	stage string
	code  int
	err   error
	took  time.Duration
}

func main() {
	base := flag.String("url", "http://localhost:8080", "server base URL")
	users := flag.Int("users", 10, "number of simulated users")
	question := flag.String("question", "What do the stars say about my career this month?", "question every user asks")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	results := make(chan result, *users*3)
	var wg sync.WaitGroup
	for i := 0; i < *users; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			simulate(ctx, *base, *question, results)
		}()
	}
	wg.Wait()
	close(results)

	report(results)
}

// simulate runs signup, login and one question for a fresh user.
func simulate(ctx context.Context, base, question string, results chan<- result) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		results <- result{stage: "setup", err: err}
		return
	}
	client := &http.Client{Jar: jar, Timeout: 90 * time.Second}

	id := uuid.NewString()[:8]
	email := fmt.Sprintf("load-%s@test.com", id)
	password := "load-" + id + "-password"

	steps := []struct {
		stage string
		path  string
		form  url.Values
	}{
		{"signup", "/account/signup", url.Values{
			"username":         {"load-" + id},
			"email":            {email},
			"password":         {password},
			"confirm_password": {password},
		}},
		{"login", "/account/login", url.Values{"email": {email}, "password": {password}}},
		{"ask", "/chat/messages", url.Values{"content": {question}}},
	}

	for _, s := range steps {
		res := post(ctx, client, base+s.path, s.form)
		res.stage = s.stage
		results <- res
		if res.err != nil || res.code >= 400 {
			return
		}
	}
}

func post(ctx context.Context, client *http.Client, endpoint string, form url.Values) result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		return result{err: fmt.Errorf("failed to send POST request to [%s]: %w", endpoint, err), took: time.Since(start)}
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body) //nolint:errcheck

	return result{code: res.StatusCode, took: time.Since(start)}
}

func report(results <-chan result) {
	type stats struct {
		codes map[int]int
		errs  int
		total time.Duration
		n     int
	}
	byStage := map[string]*stats{}
	var order []string

	for r := range results {
		s, ok := byStage[r.stage]
		if !ok {
			s = &stats{codes: map[int]int{}}
			byStage[r.stage] = s
			order = append(order, r.stage)
		}
		s.n++
		s.total += r.took
		if r.err != nil {
			s.errs++
			log.Printf("%s: %v", r.stage, r.err)
			continue
		}
		s.codes[r.code]++
	}

	for _, stage := range order {
		s := byStage[stage]
		log.Printf("%-6s requests=%d errors=%d avg=%s codes=%v",
			stage, s.n, s.errs, (s.total / time.Duration(s.n)).Round(time.Millisecond), s.codes)
	}
}
