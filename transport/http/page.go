package http

// indexPage is the whole web UI: one input, one button, the answer and its
// sources.
const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>DocBlade</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 3rem auto; padding: 0 1rem; }
input { width: 75%; padding: 0.5rem; }
button { padding: 0.5rem 1rem; }
#answer { margin-top: 1.5rem; white-space: pre-wrap; }
#sources { margin-top: 1rem; color: #555; font-size: 0.9rem; }
</style>
</head>
<body>
<h1>DocBlade</h1>
<p>Ask a question about the indexed documents:</p>
<input id="query" type="text" placeholder="Is flood damage covered?">
<button onclick="ask()">Ask</button>
<div id="answer"></div>
<div id="sources"></div>
<script>
async function ask() {
	const query = document.getElementById('query').value;
	if (!query) return;

	const answer = document.getElementById('answer');
	const sources = document.getElementById('sources');
	answer.textContent = 'Retrieving answer…';
	sources.textContent = '';

	try {
		const resp = await fetch('/api/ask', {
			method: 'POST',
			headers: {'Content-Type': 'application/json'},
			body: JSON.stringify({query: query})
		});
		if (!resp.ok) {
			answer.textContent = 'Error: ' + await resp.text();
			return;
		}
		const result = await resp.json();
		answer.textContent = result.text;
		if (result.sources && result.sources.length > 0) {
			sources.textContent = 'Sources: ' + result.sources.join(', ');
		}
	} catch (err) {
		answer.textContent = 'Error: ' + err;
	}
}
document.getElementById('query').addEventListener('keydown', e => {
	if (e.key === 'Enter') ask();
});
</script>
</body>
</html>
`
