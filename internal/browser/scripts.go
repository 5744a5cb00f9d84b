package browser

import (
	"fmt"
	"strings"
)

// captureScript projects the DOM into the capture shape in one evaluation:
// visible text, every form with its fields, and the clickable elements.
// Kept to plain ES5 so ancient unsubscribe pages don't choke the evaluate.
const captureScript = `(function() {
	function labelFor(el) {
		if (!el.id) return '';
		var l = document.querySelector('label[for="' + el.id + '"]');
		return l ? l.textContent.trim() : '';
	}

	var forms = [];
	var formEls = document.querySelectorAll('form');
	for (var i = 0; i < formEls.length; i++) {
		var f = formEls[i];
		var fields = [];
		var inputs = f.querySelectorAll('input, select, textarea');
		for (var j = 0; j < inputs.length; j++) {
			var el = inputs[j];
			if (el.type === 'hidden' || el.type === 'submit' || el.type === 'button') continue;

			var tag = el.tagName.toLowerCase();
			var options = [];
			if (tag === 'select') {
				for (var k = 0; k < el.options.length; k++) {
					var o = el.options[k];
					options.push({value: o.value, text: (o.text || '').trim(), selected: o.selected});
				}
			}
			fields.push({
				type: tag === 'select' ? 'select' : (tag === 'textarea' ? 'textarea' : (el.type || 'text')),
				name: el.name || '',
				id: el.id || '',
				placeholder: el.placeholder || '',
				label: labelFor(el),
				current_value: (el.type === 'checkbox' || el.type === 'radio') ? '' : (el.value || ''),
				required: !!el.required,
				checked: !!el.checked,
				options: options
			});
		}
		forms.push({
			index: i,
			action: f.getAttribute('action') || '',
			method: (f.method || 'get').toLowerCase(),
			fields: fields
		});
	}

	var clickables = [];
	var els = document.querySelectorAll("button, a, input[type='submit'], input[type='button'], [onclick], [role='button']");
	for (var i = 0; i < els.length && clickables.length < 100; i++) {
		var el = els[i];
		if (el.offsetParent === null) continue;
		var text = (el.textContent || el.value || el.getAttribute('aria-label') || '').trim();
		clickables.push({
			tag: el.tagName.toLowerCase(),
			text: text.slice(0, 120),
			type: el.type || '',
			id: el.id || '',
			class: (typeof el.className === 'string' ? el.className : '').slice(0, 120),
			href: el.getAttribute('href') || ''
		});
	}

	return {
		url: location.href,
		title: document.title || '',
		text: document.body ? document.body.innerText.slice(0, 100000) : '',
		forms: forms,
		clickables: clickables
	};
})()`

// defaultClickableTags is the element set scanned when the caller does not
// narrow the search.
var defaultClickableTags = []string{"button", "a", "input[type='submit']", "[onclick]"}

// clickByTextScript builds the evaluation that clicks the first visible
// element among tags whose text, value, or aria-label contains the given
// text, case-insensitively.
func clickByTextScript(text string, tags []string) string {
	if len(tags) == 0 {
		tags = defaultClickableTags
	}
	return fmt.Sprintf(`(function() {
		var needle = %q.toLowerCase();
		var els = document.querySelectorAll(%q);
		for (var i = 0; i < els.length; i++) {
			var el = els[i];
			if (el.offsetParent === null) continue;
			var t = (el.textContent || el.value || el.getAttribute('aria-label') || '').toLowerCase();
			if (t.indexOf(needle) !== -1) {
				el.click();
				return true;
			}
		}
		return false;
	})()`, text, strings.Join(tags, ", "))
}
